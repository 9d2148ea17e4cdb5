package assistant

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/tablechat/tablechat/internal/dataset"
	"github.com/tablechat/tablechat/internal/store"
)

const nullText = "NULL"

// FormatPreview renders a result as an aligned text grid with a leading row
// index column.
func FormatPreview(result store.Result) string {
	if len(result.Rows) == 0 {
		return fmt.Sprintf("Empty table\nColumns: [%s]", strings.Join(result.Columns, ", "))
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := append([]string{""}, result.Columns...)
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")
	for i, row := range result.Rows {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, fmt.Sprint(i))
		for _, value := range row {
			cells = append(cells, cellText(value))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
	}
	_ = w.Flush()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

func cellText(value any) string {
	if value == nil {
		return nullText
	}
	text := dataset.FormatValue(value)
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(text)
}
