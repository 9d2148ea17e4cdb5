package storage

import (
	"testing"
	"time"
)

func TestBuildSnapshotPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 6, 0, time.FixedZone("x", -5*3600))
	key, err := BuildSnapshotPath("raw_data", ts, "0b6f3c1e-2a4d-4c55-9e1f-5d7a8b9c0d1e")
	if err != nil {
		t.Fatalf("BuildSnapshotPath() error = %v", err)
	}
	want := "snapshots/raw_data/20260219T090506Z-0b6f3c1e-2a4d-4c55-9e1f-5d7a8b9c0d1e.parquet"
	if key != want {
		t.Fatalf("BuildSnapshotPath() = %q, want %q", key, want)
	}
}

func TestBuildSnapshotPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildSnapshotPath("../oops", time.Now(), "id-1"); err == nil {
		t.Fatal("expected invalid table name error")
	}
	if _, err := BuildSnapshotPath("raw_data", time.Now(), ""); err == nil {
		t.Fatal("expected invalid snapshot id error")
	}
}

func TestSnapshotPrefix(t *testing.T) {
	prefix, err := SnapshotPrefix("raw_data")
	if err != nil {
		t.Fatalf("SnapshotPrefix() error = %v", err)
	}
	if prefix != "snapshots/raw_data/" {
		t.Fatalf("SnapshotPrefix() = %q", prefix)
	}
	key, _ := BuildSnapshotPath("raw_data", time.Now(), "id-1")
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		t.Fatalf("key %q does not start with %q", key, prefix)
	}
	if _, err := SnapshotPrefix(""); err == nil {
		t.Fatal("expected invalid table name error")
	}
}
