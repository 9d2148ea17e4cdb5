package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

const SnapshotRoot = "snapshots"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotPath returns snapshots/<table>/<UTC timestamp>-<id>.parquet.
// Keys of one table sort by creation time.
func BuildSnapshotPath(tableName string, createdAt time.Time, id string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(id, "snapshot id"); err != nil {
		return "", err
	}
	ts := createdAt.UTC()
	return path.Join(
		SnapshotRoot,
		tableName,
		fmt.Sprintf("%s-%s.parquet", ts.Format("20060102T150405Z"), id),
	), nil
}

// SnapshotPrefix is the key prefix shared by all snapshots of a table.
func SnapshotPrefix(tableName string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	return SnapshotRoot + "/" + tableName + "/", nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
