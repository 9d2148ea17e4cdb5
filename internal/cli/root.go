// Package cli wires the tablechat command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tablechat/tablechat/internal/config"
)

const serviceName = "tablechat"

type Options struct {
	Stdout     io.Writer
	Stderr     io.Writer
	Lookup     config.LookupFunc
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = io.Discard
	}
	if o.Stderr == nil {
		o.Stderr = io.Discard
	}
	if o.Lookup == nil {
		o.Lookup = os.LookupEnv
	}
	return o
}

func NewRootCommand(opts Options) *cobra.Command {
	opts = opts.withDefaults()
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Ask questions about a CSV dataset through a chat model",
		Long:          "tablechat loads a CSV into a typed DuckDB table and serves a chat API that answers questions about it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	root.AddCommand(
		newServeCommand(opts),
		newPreprocessCommand(opts),
		newClientCommand(opts),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	root := NewRootCommand(opts)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(serviceName, opts.Lookup)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
