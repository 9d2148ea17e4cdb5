package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/storage"
	"github.com/tablechat/tablechat/internal/store/duckdb"
)

type row struct {
	Region  string  `parquet:"region"`
	Revenue float64 `parquet:"revenue"`
}

type fileExporter struct {
	rows []row
	err  error
}

func (f fileExporter) ExportParquet(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	return parquet.WriteFile(path, f.rows)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]storage.PutOptions
	putErr  error
	statErr error
	short   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, meta: map[string]storage.PutOptions{}}
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	if m.putErr != nil {
		return storage.ObjectInfo{}, m.putErr
	}
	payload, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	if m.short {
		payload = payload[:len(payload)/2]
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = payload
	m.meta[key] = opts
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if m.statErr != nil {
		return storage.ObjectInfo{}, m.statErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.ObjectInfo, 0, len(m.objects))
	for key, payload := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(payload))})
		}
	}
	return out, nil
}

func fixedOptions() []Option {
	return []Option{
		WithClock(func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }),
		WithIDGenerator(func() string { return "snap-1" }),
	}
}

func TestArchiveUploadsValidatedParquet(t *testing.T) {
	objects := newMemoryStore()
	exporter := fileExporter{rows: []row{{Region: "North", Revenue: 10}, {Region: "South", Revenue: 5}}}

	snap, err := New(exporter, objects, fixedOptions()...).Archive(context.Background())
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	wantKey := "snapshots/raw_data/20250304T050607Z-snap-1.parquet"
	if snap.Key != wantKey || snap.Rows != 2 || snap.Size == 0 {
		t.Fatalf("Archive() = %+v", snap)
	}

	payload := objects.objects[wantKey]
	if int64(len(payload)) != snap.Size {
		t.Fatalf("stored %d bytes, snapshot says %d", len(payload), snap.Size)
	}
	if objects.meta[wantKey].Metadata["rows"] != "2" || objects.meta[wantKey].ContentType != contentType {
		t.Fatalf("metadata = %+v", objects.meta[wantKey])
	}

	got, err := parquet.Read[row](bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("parquet.Read() error = %v", err)
	}
	if len(got) != 2 || got[0].Region != "North" {
		t.Fatalf("uploaded rows = %+v", got)
	}
}

func TestArchiveFailsOnExportError(t *testing.T) {
	objects := newMemoryStore()
	boom := errors.New("copy failed")
	if _, err := New(fileExporter{err: boom}, objects).Archive(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Archive() error = %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("objects = %v", objects.objects)
	}
}

func TestArchiveRejectsInvalidParquet(t *testing.T) {
	exporter := exporterFunc(func(path string) error {
		return os.WriteFile(path, []byte("not parquet"), 0o600)
	})
	if _, err := New(exporter, newMemoryStore()).Archive(context.Background()); err == nil {
		t.Fatal("Archive() expected parquet validation error")
	}
}

func TestArchiveDeletesTruncatedUpload(t *testing.T) {
	objects := newMemoryStore()
	objects.short = true
	exporter := fileExporter{rows: []row{{Region: "North", Revenue: 1}}}

	if _, err := New(exporter, objects, fixedOptions()...).Archive(context.Background()); err == nil {
		t.Fatal("Archive() expected size verification error")
	}
	if len(objects.objects) != 0 {
		t.Fatalf("truncated object should be deleted, have %v", len(objects.objects))
	}
}

func TestArchiveDeletesUploadWhenVerificationFails(t *testing.T) {
	objects := newMemoryStore()
	objects.statErr = errors.New("head request timed out")
	exporter := fileExporter{rows: []row{{Region: "North", Revenue: 1}}}

	_, err := New(exporter, objects, fixedOptions()...).Archive(context.Background())
	if !errors.Is(err, objects.statErr) {
		t.Fatalf("Archive() error = %v", err)
	}
	if len(objects.objects) != 0 {
		t.Fatalf("unverified object should be deleted, have %v", len(objects.objects))
	}
}

func TestArchiveExportsDuckDBTable(t *testing.T) {
	ctx := context.Background()
	db, err := duckdb.Open(ctx, "")
	if err != nil {
		t.Fatalf("duckdb.Open() error = %v", err)
	}
	defer db.Close()

	table := &dataset.Table{Columns: []dataset.Column{
		{Name: "region", Type: dataset.DTypeText, Values: []any{"North", "South", "East"}},
		{Name: "revenue", Type: dataset.DTypeFloat, Values: []any{1.0, 2.0, 3.0}},
	}}
	if err := db.Replace(ctx, table); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	snap, err := New(db, newMemoryStore(), fixedOptions()...).Archive(ctx)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if snap.Rows != 3 {
		t.Fatalf("Archive().Rows = %d", snap.Rows)
	}
}

func TestArchivePrunesOldSnapshots(t *testing.T) {
	objects := newMemoryStore()
	exporter := fileExporter{rows: []row{{Region: "North", Revenue: 1}}}

	start := time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC)
	step := 0
	archiver := New(exporter, objects,
		WithClock(func() time.Time { return start.Add(time.Duration(step) * time.Minute) }),
		WithIDGenerator(func() string { return "snap" }),
		WithRetention(2),
	)
	objects.objects["snapshots/other/20250101T000000Z-x.parquet"] = []byte("keep")
	for step = 0; step < 4; step++ {
		if _, err := archiver.Archive(context.Background()); err != nil {
			t.Fatalf("Archive() #%d error = %v", step, err)
		}
	}

	if len(objects.objects) != 3 {
		t.Fatalf("objects = %d, want 2 snapshots plus foreign key", len(objects.objects))
	}
	for _, key := range []string{
		"snapshots/raw_data/20250304T050800Z-snap.parquet",
		"snapshots/raw_data/20250304T050900Z-snap.parquet",
	} {
		if _, ok := objects.objects[key]; !ok {
			t.Fatalf("missing newest snapshot %q", key)
		}
	}
}

func TestPruneValidatesKeep(t *testing.T) {
	archiver := New(fileExporter{}, newMemoryStore())
	if _, err := archiver.Prune(context.Background(), 0); err == nil {
		t.Fatal("Prune(0) expected error")
	}
	deleted, err := archiver.Prune(context.Background(), 3)
	if err != nil || len(deleted) != 0 {
		t.Fatalf("Prune() on empty store = %v, %v", deleted, err)
	}
}

type exporterFunc func(path string) error

func (f exporterFunc) ExportParquet(_ context.Context, path string) error {
	return f(path)
}
