package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const summaryExamples = 3

// Summarize describes a table's shape and, per column, its runtime type,
// distinct value count and up to three first-seen example values.
func Summarize(table *Table) string {
	lines := make([]string, 0, table.NumCols()+1)
	lines = append(lines, fmt.Sprintf("The dataset has %d rows and %d columns.", table.NumRows(), table.NumCols()))
	for _, column := range table.Columns {
		distinct := 0
		seen := map[string]struct{}{}
		examples := make([]string, 0, summaryExamples)
		for _, value := range column.Values {
			if isMissing(value) {
				continue
			}
			key := FormatValue(value)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			distinct++
			if len(examples) < summaryExamples {
				examples = append(examples, quoteExample(value, key))
			}
		}
		lines = append(lines, fmt.Sprintf(
			"Column '%s' is of type '%s' with ~%d unique values, e.g., [%s].",
			column.Name, column.Type, distinct, strings.Join(examples, ", "),
		))
	}
	return strings.Join(lines, "\n")
}

// FormatValue renders a cell value the same way everywhere it is shown as text.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format("2006-01-02")
		}
		return typed.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(typed)
	}
}

func quoteExample(value any, formatted string) string {
	switch value.(type) {
	case string, time.Time:
		return "'" + formatted + "'"
	default:
		return formatted
	}
}
