// Package duckdb keeps the live raw_data table in a DuckDB database file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/store"
)

type Store struct {
	db    *sql.DB
	table string
}

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database shared by every connection of the returned store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db, table: store.TableName}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Replace(ctx context.Context, table *dataset.Table) error {
	if table == nil || table.NumCols() == 0 {
		return fmt.Errorf("table has no columns")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, createTableSQL(s.table, table)); err != nil {
		return fmt.Errorf("create table %q: %w", s.table, err)
	}

	if rows := table.NumRows(); rows > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL(s.table, table.NumCols()))
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := 0; i < rows; i++ {
			if _, err := stmt.ExecContext(ctx, table.Row(i)...); err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) Preview(ctx context.Context, limit int) (store.Result, error) {
	if limit <= 0 {
		return store.Result{}, fmt.Errorf("preview limit must be positive")
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return store.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(s.table), limit))
	if err != nil {
		return store.Result{}, fmt.Errorf("preview %q: %w", s.table, err)
	}
	return collect(rows)
}

// QueryUnsafe runs sqlText inside a transaction that is always rolled back.
func (s *Store) QueryUnsafe(ctx context.Context, sqlText string) (store.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return store.Result{}, fmt.Errorf("sql is required")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return store.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return store.Result{}, fmt.Errorf("begin query: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return store.Result{}, err
	}
	return collect(rows)
}

func (s *Store) ExportParquet(ctx context.Context, path string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	copySQL := fmt.Sprintf(`COPY %s TO %s (FORMAT PARQUET)`, quoteIdent(s.table), quoteString(path))
	if _, err := conn.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("export %q to parquet: %w", s.table, err)
	}
	return nil
}

func collect(rows *sql.Rows) (store.Result, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return store.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return store.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return store.Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return store.Result{Columns: columns, Rows: resultRows}, nil
}

// normalizeValues maps driver values onto JSON-encodable ones. Numbers stay
// numbers; NaN and infinities become null.
func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		normalized[i] = normalizeValue(value)
	}
	return normalized
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case nil, bool, string, time.Time,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return typed
	case float32:
		return finiteOrNil(float64(typed))
	case float64:
		return finiteOrNil(typed)
	case []byte:
		return string(typed)
	case *big.Int:
		if typed == nil {
			return nil
		}
		// HUGEINT aggregates only fall back to text once they overflow int64.
		if typed.IsInt64() {
			return typed.Int64()
		}
		return typed.String()
	case goduckdb.Decimal:
		return finiteOrNil(typed.Float64())
	case []any:
		return normalizeValues(typed)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	default:
		return fmt.Sprint(typed)
	}
}

func finiteOrNil(value float64) any {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return value
}

func createTableSQL(name string, table *dataset.Table) string {
	defs := make([]string, 0, table.NumCols())
	for _, column := range table.Columns {
		defs = append(defs, quoteIdent(column.Name)+" "+sqlType(column.Type))
	}
	return fmt.Sprintf(`CREATE OR REPLACE TABLE %s (%s)`, quoteIdent(name), strings.Join(defs, ", "))
}

func insertSQL(name string, columns int) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", columns), ", ")
	return fmt.Sprintf(`INSERT INTO %s VALUES (%s)`, quoteIdent(name), placeholders)
}

func sqlType(dtype dataset.DType) string {
	switch dtype {
	case dataset.DTypeInteger:
		return "BIGINT"
	case dataset.DTypeFloat:
		return "DOUBLE"
	case dataset.DTypeBoolean:
		return "BOOLEAN"
	case dataset.DTypeDatetime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
