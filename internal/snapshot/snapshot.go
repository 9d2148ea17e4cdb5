// Package snapshot archives the live table to the object store as parquet.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/storage"
	"github.com/tablechat/tablechat/internal/store"
)

const contentType = "application/vnd.apache.parquet"

type Snapshot struct {
	Key       string
	Rows      int64
	Size      int64
	CreatedAt time.Time
}

type Option func(*Archiver)

func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(a *Archiver) { a.newID = newID }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) { a.logger = logger }
}

// WithRetention keeps only the newest keep snapshots after each upload.
// Zero disables pruning.
func WithRetention(keep int) Option {
	return func(a *Archiver) { a.keep = keep }
}

type Archiver struct {
	exporter store.ParquetExporter
	objects  storage.ObjectStore
	table    string
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	keep     int
}

func New(exporter store.ParquetExporter, objects storage.ObjectStore, opts ...Option) *Archiver {
	a := &Archiver{
		exporter: exporter,
		objects:  objects,
		table:    store.TableName,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		logger:   observability.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive exports the table, checks the file is readable parquet and uploads
// it under a fresh key.
func (a *Archiver) Archive(ctx context.Context) (Snapshot, error) {
	snap, err := a.archive(ctx)
	if err != nil {
		observability.ObserveSnapshotUpload(observability.OutcomeError)
		return Snapshot{}, err
	}
	observability.ObserveSnapshotUpload(observability.OutcomeOK)
	a.logger.InfoContext(ctx, "snapshot_uploaded",
		slog.String("key", snap.Key),
		slog.Int64("rows", snap.Rows),
		slog.Int64("bytes", snap.Size),
	)
	if a.keep > 0 {
		if _, err := a.Prune(ctx, a.keep); err != nil {
			a.logger.WarnContext(ctx, "snapshot_prune_failed", slog.String("error", err.Error()))
		}
	}
	return snap, nil
}

// Prune deletes all but the newest keep snapshots of the table and returns
// the deleted keys.
func (a *Archiver) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be positive, got %d", keep)
	}
	prefix, err := storage.SnapshotPrefix(a.table)
	if err != nil {
		return nil, err
	}
	objects, err := a.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if filepath.Ext(obj.Key) == ".parquet" {
			keys = append(keys, obj.Key)
		}
	}
	if len(keys) <= keep {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	deleted := make([]string, 0, len(keys)-keep)
	for _, key := range keys[keep:] {
		if err := a.objects.Delete(ctx, key); err != nil {
			return deleted, fmt.Errorf("delete snapshot %q: %w", key, err)
		}
		deleted = append(deleted, key)
	}
	observability.AddSnapshotsPruned(len(deleted))
	a.logger.InfoContext(ctx, "snapshots_pruned",
		slog.Int("deleted", len(deleted)),
		slog.Int("kept", keep),
	)
	return deleted, nil
}

func (a *Archiver) archive(ctx context.Context) (Snapshot, error) {
	workDir, err := os.MkdirTemp("", "tablechat-snapshot-")
	if err != nil {
		return Snapshot{}, fmt.Errorf("create snapshot temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, a.table+".parquet")
	if err := a.exporter.ExportParquet(ctx, localPath); err != nil {
		return Snapshot{}, err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open exported parquet: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows, size, err := inspect(file)
	if err != nil {
		return Snapshot{}, err
	}

	createdAt := a.now()
	key, err := storage.BuildSnapshotPath(a.table, createdAt, a.newID())
	if err != nil {
		return Snapshot{}, err
	}

	_, err = a.objects.Put(ctx, key, file, size, storage.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"table": a.table,
			"rows":  strconv.FormatInt(rows, 10),
		},
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("upload snapshot: %w", err)
	}

	info, err := a.objects.Stat(ctx, key)
	if err != nil {
		_ = a.objects.Delete(ctx, key)
		return Snapshot{}, fmt.Errorf("verify snapshot %q: %w", key, err)
	}
	if info.Size != size {
		_ = a.objects.Delete(ctx, key)
		return Snapshot{}, fmt.Errorf("verify snapshot %q: stored %d bytes, want %d", key, info.Size, size)
	}

	return Snapshot{Key: key, Rows: rows, Size: size, CreatedAt: createdAt}, nil
}

// inspect returns the row count and size of a parquet file and rewinds it.
func inspect(file *os.File) (int64, int64, error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat exported parquet: %w", err)
	}
	parsed, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return 0, 0, fmt.Errorf("read exported parquet: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("rewind exported parquet: %w", err)
	}
	return parsed.NumRows(), stat.Size(), nil
}
