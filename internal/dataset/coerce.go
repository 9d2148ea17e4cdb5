package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. Month-first forms win over day-first ones;
// two-digit years follow time.Parse's 1969 pivot.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006.01.02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1-2-2006",
	"1.2.2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"20060102",
}

// NumericCoercionRate returns the fraction of values that convert to a
// finite-or-infinite number. Missing values count as failures. An empty
// slice yields 0.
func NumericCoercionRate(values []any) float64 {
	return successRate(values, func(value any) bool {
		_, ok := coerceNumber(value)
		return ok
	})
}

// DatetimeCoercionRate returns the fraction of values that convert to a
// timestamp. Missing values count as failures. An empty slice yields 0.
func DatetimeCoercionRate(values []any) float64 {
	return successRate(values, func(value any) bool {
		_, ok := coerceTime(value)
		return ok
	})
}

func successRate(values []any, try func(any) bool) float64 {
	if len(values) == 0 {
		return 0
	}
	hits := 0
	for _, value := range values {
		if try(value) {
			hits++
		}
	}
	return float64(hits) / float64(len(values))
}

func coerceNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case nil:
		return 0, false
	case int64:
		return float64(typed), true
	case float64:
		return typed, !math.IsNaN(typed)
	case bool:
		if typed {
			return 1, true
		}
		return 0, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil || math.IsNaN(parsed) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceInteger(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func coerceTime(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, true
	case string:
		return parseTime(typed)
	default:
		return time.Time{}, false
	}
}

func parseTime(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// toNumericColumn converts every value, leaving failures missing. The column
// stays integer only when every value is an integer literal.
func toNumericColumn(column Column) Column {
	values := make([]any, len(column.Values))
	integral := true
	for _, value := range column.Values {
		if _, ok := coerceInteger(value); !ok {
			integral = false
			break
		}
	}
	for i, value := range column.Values {
		if integral {
			values[i], _ = coerceInteger(value)
			continue
		}
		if number, ok := coerceNumber(value); ok {
			values[i] = number
		}
	}
	dtype := DTypeFloat
	if integral {
		dtype = DTypeInteger
	}
	return Column{Name: column.Name, Type: dtype, Values: values}
}

func toDatetimeColumn(column Column) Column {
	values := make([]any, len(column.Values))
	for i, value := range column.Values {
		if parsed, ok := coerceTime(value); ok {
			values[i] = parsed
		}
	}
	return Column{Name: column.Name, Type: DTypeDatetime, Values: values}
}
