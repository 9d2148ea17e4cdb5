package store

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordMarshalKeepsColumnOrder(t *testing.T) {
	record := Record{
		Columns: []string{"zeta", "alpha", "when"},
		Values:  []any{int64(1), nil, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	got, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"zeta":1,"alpha":null,"when":"2023-01-02T00:00:00Z"}`
	if string(got) != want {
		t.Fatalf("json.Marshal() = %s, want %s", got, want)
	}
}

func TestResultRecords(t *testing.T) {
	result := Result{Columns: []string{"a"}, Rows: [][]any{{"x"}, {"y"}}}
	records := result.Records()
	if len(records) != 2 || records[1].Values[0] != "y" {
		t.Fatalf("Records() = %#v", records)
	}
	if got := (Result{Columns: []string{"a"}}).Records(); got == nil || len(got) != 0 {
		t.Fatalf("Records() on empty result = %#v", got)
	}
}
