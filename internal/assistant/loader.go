package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/snapshot"
	"github.com/tablechat/tablechat/internal/store"
)

// Load modes.
const (
	ModeFull = "full"
	ModeRaw  = "raw"
)

// Archiver receives the table after every successful load.
type Archiver interface {
	Archive(ctx context.Context) (snapshot.Snapshot, error)
}

type LoadResult struct {
	Mode       string
	Rows       int
	Columns    int
	Summary    string
	Inferences []dataset.Inference
	Snapshot   *snapshot.Snapshot
}

type Loader struct {
	store    store.Store
	archiver Archiver
	csvPath  string
	opts     dataset.Options
	logger   *slog.Logger

	mu     sync.RWMutex
	latest *LoadResult
}

type LoaderConfig struct {
	CSVPath  string
	Options  dataset.Options
	Archiver Archiver
	Logger   *slog.Logger
}

func NewLoader(st store.Store, cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Loader{store: st, archiver: cfg.Archiver, csvPath: cfg.CSVPath, opts: cfg.Options, logger: logger}
}

// LoadFull runs normalization and type inference over the CSV before
// replacing the stored table.
func (l *Loader) LoadFull(ctx context.Context) (LoadResult, error) {
	raw, err := dataset.ReadCSVFile(l.csvPath)
	if err != nil {
		return l.fail(ctx, ModeFull, err)
	}
	table, inferences, err := dataset.Normalize(raw, l.opts)
	if err != nil {
		return l.fail(ctx, ModeFull, fmt.Errorf("preprocess %q: %w", l.csvPath, err))
	}
	result := LoadResult{Mode: ModeFull, Summary: dataset.Summarize(table), Inferences: inferences}
	return l.replace(ctx, table, result)
}

// LoadRaw sanitizes labels and loads the CSV with its native typing only.
func (l *Loader) LoadRaw(ctx context.Context) (LoadResult, error) {
	table, err := dataset.PrepareRaw(l.csvPath)
	if err != nil {
		return l.fail(ctx, ModeRaw, err)
	}
	return l.replace(ctx, table, LoadResult{Mode: ModeRaw, Summary: dataset.Summarize(table)})
}

// Latest returns the result of the most recent successful load.
func (l *Loader) Latest() (LoadResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.latest == nil {
		return LoadResult{}, false
	}
	return *l.latest, true
}

func (l *Loader) replace(ctx context.Context, table *dataset.Table, result LoadResult) (LoadResult, error) {
	if err := l.store.Replace(ctx, table); err != nil {
		return l.fail(ctx, result.Mode, err)
	}
	result.Rows = table.NumRows()
	result.Columns = table.NumCols()
	observability.ObserveTableLoad(result.Mode, observability.OutcomeOK, result.Rows)
	l.logger.InfoContext(ctx, "dataset_loaded",
		slog.String("mode", result.Mode),
		slog.String("path", l.csvPath),
		slog.Int("rows", result.Rows),
		slog.Int("columns", result.Columns),
	)

	if l.archiver != nil {
		snap, err := l.archiver.Archive(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "snapshot_failed", slog.String("error", err.Error()))
		} else {
			result.Snapshot = &snap
		}
	}

	l.mu.Lock()
	l.latest = &result
	l.mu.Unlock()
	return result, nil
}

func (l *Loader) fail(ctx context.Context, mode string, err error) (LoadResult, error) {
	observability.ObserveTableLoad(mode, observability.OutcomeError, -1)
	l.logger.ErrorContext(ctx, "dataset_load_failed",
		slog.String("mode", mode),
		slog.String("path", l.csvPath),
		slog.String("error", err.Error()),
	)
	return LoadResult{}, err
}
