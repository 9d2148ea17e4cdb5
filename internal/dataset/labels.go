package dataset

import (
	"strconv"
	"strings"
)

// reservedLabelPrefix marks labels that are replaced by a positional name.
const reservedLabelPrefix = "?"

// NormalizeLabels cleans labels for the full preprocessing path: surrounding
// whitespace is stripped and embedded line breaks are removed. Labels left
// blank, or starting with the reserved marker, become col_<index>.
func NormalizeLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		cleaned := strings.TrimSpace(label)
		cleaned = strings.ReplaceAll(cleaned, "\n", "")
		cleaned = strings.ReplaceAll(cleaned, "\r", "")
		if cleaned == "" || strings.HasPrefix(cleaned, reservedLabelPrefix) {
			cleaned = positionalLabel(i)
		}
		out[i] = cleaned
	}
	return dedupeLabels(out)
}

// SanitizeLabels is the lightweight relabeling used on reload: blank or
// marker-prefixed labels become col_<index>, everything else is trimmed and
// has its spaces replaced by underscores.
func SanitizeLabels(labels []string) []string {
	out := make([]string, len(labels))
	for i, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" || strings.HasPrefix(label, reservedLabelPrefix) {
			out[i] = positionalLabel(i)
			continue
		}
		out[i] = strings.ReplaceAll(trimmed, " ", "_")
	}
	return dedupeLabels(out)
}

func positionalLabel(index int) string {
	return "col_" + strconv.Itoa(index)
}

// dedupeLabels suffixes repeated labels with _1, _2, ... keeping the first
// occurrence unchanged.
func dedupeLabels(labels []string) []string {
	taken := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		taken[label] = struct{}{}
	}
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, len(labels))
	for i, label := range labels {
		if _, dup := seen[label]; !dup {
			seen[label] = struct{}{}
			out[i] = label
			continue
		}
		for n := 1; ; n++ {
			candidate := label + "_" + strconv.Itoa(n)
			if _, used := taken[candidate]; used {
				continue
			}
			taken[candidate] = struct{}{}
			seen[candidate] = struct{}{}
			out[i] = candidate
			break
		}
	}
	return out
}

func applyLabels(table *Table, labels []string) {
	for i := range table.Columns {
		table.Columns[i].Name = labels[i]
	}
}
