package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// naTokens are cells the reader treats as missing.
var naTokens = tokenSet("", "NA", "N/A", "n/a", "#N/A", "#NA", "NaN", "nan", "-NaN", "-nan", "null", "NULL", "None", "<NA>")

var (
	trueTokens  = tokenSet("True", "TRUE", "true")
	falseTokens = tokenSet("False", "FALSE", "false")
)

func tokenSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}

// ReadCSVFile reads a CSV file into a raw table. Labels are kept verbatim.
func ReadCSVFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = file.Close() }()

	table, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("read csv %q: %w", path, err)
	}
	return table, nil
}

// ReadCSV parses CSV data into a raw table. Each column gets a native runtime
// type: integer or float when every present cell parses as such, boolean when
// every present cell is a true/false literal, text otherwise. A column without
// any present cell is typed float.
func ReadCSV(reader io.Reader) (*Table, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no columns to parse")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = append([]string(nil), header...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	cells := make([][]string, len(header))
	present := make([][]bool, len(header))
	line := 1
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		for i := range header {
			if i >= len(record) {
				cells[i] = append(cells[i], "")
				present[i] = append(present[i], false)
				continue
			}
			_, na := naTokens[record[i]]
			cells[i] = append(cells[i], record[i])
			present[i] = append(present[i], !na)
		}
	}

	table := &Table{Columns: make([]Column, len(header))}
	for i, label := range header {
		table.Columns[i] = typeColumn(label, cells[i], present[i])
	}
	return table, nil
}

func typeColumn(label string, cells []string, present []bool) Column {
	dtype := nativeType(cells, present)
	values := make([]any, len(cells))
	for i, cell := range cells {
		if !present[i] {
			continue
		}
		switch dtype {
		case DTypeInteger:
			values[i], _ = strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
		case DTypeFloat:
			values[i], _ = strconv.ParseFloat(strings.TrimSpace(cell), 64)
		case DTypeBoolean:
			_, values[i] = trueTokens[strings.TrimSpace(cell)]
		default:
			values[i] = cell
		}
	}
	return Column{Name: label, Type: dtype, Values: values}
}

func nativeType(cells []string, present []bool) DType {
	seen := 0
	allInt, allFloat, allBool := true, true, true
	for i, cell := range cells {
		if !present[i] {
			continue
		}
		seen++
		trimmed := strings.TrimSpace(cell)
		if allInt {
			if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			_, isTrue := trueTokens[trimmed]
			_, isFalse := falseTokens[trimmed]
			allBool = isTrue || isFalse
		}
		if !allInt && !allFloat && !allBool {
			return DTypeText
		}
	}
	switch {
	case seen == 0:
		return DTypeFloat
	case allInt:
		return DTypeInteger
	case allFloat:
		return DTypeFloat
	case allBool:
		return DTypeBoolean
	default:
		return DTypeText
	}
}
