// Package store defines the relational table that backs a chat session and
// the row results read from it.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tablechat/tablechat/internal/dataset"
)

// TableName is the single table the store keeps live.
const TableName = "raw_data"

type Result struct {
	Columns []string
	Rows    [][]any
}

// Records returns the rows as ordered column/value records.
func (r Result) Records() []Record {
	records := make([]Record, 0, len(r.Rows))
	for _, row := range r.Rows {
		records = append(records, Record{Columns: r.Columns, Values: row})
	}
	return records
}

// Record is one result row. It marshals to a JSON object whose keys keep the
// query's column order.
type Record struct {
	Columns []string
	Values  []any
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", column, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		var value any
		if i < len(r.Values) {
			value = r.Values[i]
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for %q: %w", column, err)
		}
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Store holds the live raw_data table.
type Store interface {
	// Replace swaps the stored table for the given one in a single transaction.
	Replace(ctx context.Context, table *dataset.Table) error
	Preview(ctx context.Context, limit int) (Result, error)
	// QueryUnsafe runs caller-supplied SQL verbatim. Any write it performs is
	// rolled back, but the text itself is not validated.
	QueryUnsafe(ctx context.Context, sqlText string) (Result, error)
	Ping(ctx context.Context) error
}

// ParquetExporter writes the live table to a local parquet file.
type ParquetExporter interface {
	ExportParquet(ctx context.Context, path string) error
}
