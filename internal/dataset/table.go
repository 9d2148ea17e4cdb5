// Package dataset turns a CSV file into a typed, cleaned table ready to be
// loaded into the relational store, and describes such tables in prose.
package dataset

// DType is the runtime type carried by every value of a column.
//
// Values are stored as nil (missing), int64, float64, bool, time.Time or string
// according to the column's DType.
type DType string

const (
	DTypeInteger  DType = "integer"
	DTypeFloat    DType = "float"
	DTypeBoolean  DType = "boolean"
	DTypeDatetime DType = "datetime"
	DTypeText     DType = "text"
)

// Kind is the semantic type assigned by inference.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindDatetime Kind = "datetime"
	KindText     Kind = "text"
	KindBoolean  Kind = "boolean"
)

func (d DType) Kind() Kind {
	switch d {
	case DTypeInteger, DTypeFloat:
		return KindNumeric
	case DTypeDatetime:
		return KindDatetime
	case DTypeBoolean:
		return KindBoolean
	default:
		return KindText
	}
}

// Native reports whether values of this type came typed from the reader and
// are left alone by inference.
func (d DType) Native() bool {
	switch d {
	case DTypeInteger, DTypeFloat, DTypeBoolean:
		return true
	default:
		return false
	}
}

// Column is one named, typed column of a Table.
type Column struct {
	Name   string
	Type   DType
	Values []any
}

// Table is stored column-major; every column has the same number of values.
type Table struct {
	Columns []Column
}

func (t *Table) NumRows() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, 0, t.NumCols())
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, column := range t.Columns {
		row[j] = column.Values[i]
	}
	return row
}

// Clone returns a deep copy of the table structure. Values are immutable
// scalars so the value slices are copied, not the values themselves.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]Column, len(t.Columns))}
	for i, column := range t.Columns {
		values := make([]any, len(column.Values))
		copy(values, column.Values)
		out.Columns[i] = Column{Name: column.Name, Type: column.Type, Values: values}
	}
	return out
}

func isMissing(value any) bool {
	return value == nil
}
