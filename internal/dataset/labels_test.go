package dataset

import (
	"reflect"
	"testing"
)

func TestNormalizeLabels(t *testing.T) {
	got := NormalizeLabels([]string{" Revenue ", "Re\ngion\r", "", "?weird", "Revenue", "Unit Price"})
	want := []string{"Revenue", "Region", "col_2", "col_3", "Revenue_1", "Unit Price"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeLabels() = %#v, want %#v", got, want)
	}
}

func TestSanitizeLabels(t *testing.T) {
	got := SanitizeLabels([]string{" Order Date ", "Amount", "", "?flag", "  ", "Amount"})
	want := []string{"Order_Date", "Amount", "col_2", "col_3", "col_4", "Amount_1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SanitizeLabels() = %#v, want %#v", got, want)
	}
}

func TestDedupeLabelsSkipsTakenSuffixes(t *testing.T) {
	got := dedupeLabels([]string{"a", "a", "a_1"})
	want := []string{"a", "a_2", "a_1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dedupeLabels() = %#v, want %#v", got, want)
	}
}
