package dataset

import (
	"strings"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	table := &Table{Columns: []Column{
		{Name: "color", Type: DTypeText, Values: []any{"red", "blue", nil, "red", "green", "teal"}},
		{Name: "amount", Type: DTypeFloat, Values: []any{1.5, 2.0, 2.0, 3.0, 3.0, 3.0}},
		{Name: "day", Type: DTypeDatetime, Values: []any{
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), nil, nil, nil, nil,
			time.Date(2023, 1, 2, 9, 30, 0, 0, time.UTC),
		}},
	}}

	got := Summarize(table)
	want := strings.Join([]string{
		"The dataset has 6 rows and 3 columns.",
		"Column 'color' is of type 'text' with ~4 unique values, e.g., ['red', 'blue', 'green'].",
		"Column 'amount' is of type 'float' with ~3 unique values, e.g., [1.5, 2, 3].",
		"Column 'day' is of type 'datetime' with ~2 unique values, e.g., ['2023-01-01', '2023-01-02 09:30:00'].",
	}, "\n")
	if got != want {
		t.Fatalf("Summarize() =\n%s\nwant\n%s", got, want)
	}
}

func TestSummarizeEmptyTable(t *testing.T) {
	if got := Summarize(&Table{}); got != "The dataset has 0 rows and 0 columns." {
		t.Fatalf("Summarize() = %q", got)
	}
}
