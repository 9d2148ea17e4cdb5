package dataset

import (
	"fmt"
	"strings"
)

// Options holds the coercion thresholds used by type inference.
type Options struct {
	// DateThreshold is the minimum datetime coercion rate that commits a column to datetime.
	DateThreshold float64
	// NumThreshold is the minimum numeric coercion rate that commits a column to numeric.
	NumThreshold float64
}

func DefaultOptions() Options {
	return Options{DateThreshold: 0.5, NumThreshold: 0.5}
}

// Inference records how a column was classified.
type Inference struct {
	Column       string
	NumericRate  float64
	DatetimeRate float64
	Skipped      bool
	Result       DType
}

// Preprocess runs the full normalization and type inference pipeline over a
// CSV file.
func Preprocess(path string, opts Options) (*Table, error) {
	raw, err := ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	table, _, err := Normalize(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("preprocess %q: %w", path, err)
	}
	return table, nil
}

// PrepareRaw reads a CSV file for the lightweight reload path: labels are
// sanitized and values keep the reader's native typing, with no inference
// and no missing-value handling.
func PrepareRaw(path string) (*Table, error) {
	table, err := ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	applyLabels(table, SanitizeLabels(table.ColumnNames()))
	return table, nil
}

// Normalize applies the cleaning steps in order to a copy of raw: label
// normalization, text stripping, dropping fully empty columns and rows, type
// inference, and gap filling of numeric and datetime columns.
func Normalize(raw *Table, opts Options) (*Table, []Inference, error) {
	if raw == nil {
		return nil, nil, fmt.Errorf("table is required")
	}
	if opts.DateThreshold < 0 || opts.DateThreshold > 1 || opts.NumThreshold < 0 || opts.NumThreshold > 1 {
		return nil, nil, fmt.Errorf("thresholds must be within [0,1]")
	}

	table := raw.Clone()
	applyLabels(table, NormalizeLabels(table.ColumnNames()))
	stripText(table)
	table = dropEmpty(table)
	inferences := inferTypes(table, opts)
	fillGaps(table)
	return table, inferences, nil
}

func stripText(table *Table) {
	for i := range table.Columns {
		if table.Columns[i].Type != DTypeText {
			continue
		}
		for j, value := range table.Columns[i].Values {
			if text, ok := value.(string); ok {
				table.Columns[i].Values[j] = strings.TrimSpace(text)
			}
		}
	}
}

// dropEmpty removes columns whose values are all missing, then rows whose
// values are all missing.
func dropEmpty(table *Table) *Table {
	kept := make([]Column, 0, len(table.Columns))
	for _, column := range table.Columns {
		for _, value := range column.Values {
			if !isMissing(value) {
				kept = append(kept, column)
				break
			}
		}
	}
	table = &Table{Columns: kept}

	rows := table.NumRows()
	keepRow := make([]bool, rows)
	for _, column := range table.Columns {
		for i, value := range column.Values {
			if !isMissing(value) {
				keepRow[i] = true
			}
		}
	}
	for c := range table.Columns {
		values := make([]any, 0, rows)
		for i, value := range table.Columns[c].Values {
			if keepRow[i] {
				values = append(values, value)
			}
		}
		table.Columns[c].Values = values
	}
	return table
}

func inferTypes(table *Table, opts Options) []Inference {
	inferences := make([]Inference, 0, len(table.Columns))
	for i, column := range table.Columns {
		if column.Type.Native() {
			inferences = append(inferences, Inference{Column: column.Name, Skipped: true, Result: column.Type})
			continue
		}
		// Both rates are measured before deciding; datetime wins when both pass.
		numRate := NumericCoercionRate(column.Values)
		dateRate := DatetimeCoercionRate(column.Values)
		result := classify(len(column.Values), numRate, dateRate, opts)
		switch result {
		case KindDatetime:
			table.Columns[i] = toDatetimeColumn(column)
		case KindNumeric:
			table.Columns[i] = toNumericColumn(column)
		}
		inferences = append(inferences, Inference{
			Column:       column.Name,
			NumericRate:  numRate,
			DatetimeRate: dateRate,
			Result:       table.Columns[i].Type,
		})
	}
	return inferences
}

func classify(rows int, numRate, dateRate float64, opts Options) Kind {
	if rows == 0 {
		return KindText
	}
	if dateRate >= opts.DateThreshold {
		return KindDatetime
	}
	if numRate >= opts.NumThreshold {
		return KindNumeric
	}
	return KindText
}

// fillGaps propagates the nearest preceding value forward, then the nearest
// following value backward, in numeric and datetime columns.
func fillGaps(table *Table) {
	for i := range table.Columns {
		kind := table.Columns[i].Type.Kind()
		if kind != KindNumeric && kind != KindDatetime {
			continue
		}
		values := table.Columns[i].Values
		var last any
		for j := range values {
			if isMissing(values[j]) {
				values[j] = last
				continue
			}
			last = values[j]
		}
		var next any
		for j := len(values) - 1; j >= 0; j-- {
			if isMissing(values[j]) {
				values[j] = next
				continue
			}
			next = values[j]
		}
	}
}
