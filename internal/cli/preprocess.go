package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/store/duckdb"
)

type preprocessReport struct {
	Path       string            `json:"path"`
	Rows       int               `json:"rows"`
	Columns    int               `json:"columns"`
	Summary    string            `json:"summary"`
	Inferences []inferenceReport `json:"inferences"`
}

type inferenceReport struct {
	Column       string  `json:"column"`
	Type         string  `json:"type"`
	Skipped      bool    `json:"skipped"`
	NumericRate  float64 `json:"numeric_rate"`
	DatetimeRate float64 `json:"datetime_rate"`
}

func newPreprocessCommand(opts Options) *cobra.Command {
	var (
		csvPath       string
		dbPath        string
		dateThreshold float64
		numThreshold  float64
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Normalize a CSV, infer column types and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if csvPath == "" {
				csvPath = cfg.Data.CSVPath
			}
			options := dataset.Options{DateThreshold: cfg.Data.DateThreshold, NumThreshold: cfg.Data.NumThreshold}
			if cmd.Flags().Changed("date-threshold") {
				options.DateThreshold = dateThreshold
			}
			if cmd.Flags().Changed("num-threshold") {
				options.NumThreshold = numThreshold
			}

			raw, err := dataset.ReadCSVFile(csvPath)
			if err != nil {
				return err
			}
			table, inferences, err := dataset.Normalize(raw, options)
			if err != nil {
				return fmt.Errorf("preprocess %q: %w", csvPath, err)
			}

			if dbPath != "" {
				store, err := duckdb.Open(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				if err := store.Replace(cmd.Context(), table); err != nil {
					return err
				}
			}

			report := buildReport(csvPath, table, inferences)
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV to preprocess (default TABLECHAT_DATA_CSV_PATH)")
	cmd.Flags().StringVar(&dbPath, "db", "", "also load the result into this DuckDB file")
	cmd.Flags().Float64Var(&dateThreshold, "date-threshold", dataset.DefaultOptions().DateThreshold, "minimum datetime coercion rate")
	cmd.Flags().Float64Var(&numThreshold, "num-threshold", dataset.DefaultOptions().NumThreshold, "minimum numeric coercion rate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func buildReport(path string, table *dataset.Table, inferences []dataset.Inference) preprocessReport {
	report := preprocessReport{
		Path:       path,
		Rows:       table.NumRows(),
		Columns:    table.NumCols(),
		Summary:    dataset.Summarize(table),
		Inferences: make([]inferenceReport, 0, len(inferences)),
	}
	for _, inference := range inferences {
		report.Inferences = append(report.Inferences, inferenceReport{
			Column:       inference.Column,
			Type:         string(inference.Result),
			Skipped:      inference.Skipped,
			NumericRate:  inference.NumericRate,
			DatetimeRate: inference.DatetimeRate,
		})
	}
	return report
}

func writeReport(w io.Writer, report preprocessReport) error {
	if _, err := fmt.Fprintln(w, report.Summary); err != nil {
		return err
	}
	if len(report.Inferences) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "COLUMN\tTYPE\tNUMERIC\tDATETIME")
	for _, inference := range report.Inferences {
		if inference.Skipped {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t-\t-\n", inference.Column, inference.Type)
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\n", inference.Column, inference.Type, inference.NumericRate, inference.DatetimeRate)
	}
	return tw.Flush()
}
