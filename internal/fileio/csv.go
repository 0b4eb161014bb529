package fileio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// ReadCSV decodes a CSV document with a header row.
//
// Each column is typed by inspecting its non-empty cells: int64 when all
// parse as integers, float64 when all parse as numbers, bool when all are
// true/false, string otherwise. Empty cells become nil.
func ReadCSV(r io.Reader) (*core.Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return core.EmptyFrame(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	raw := make([][]string, len(header))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		for i := range header {
			raw[i] = append(raw[i], record[i])
		}
	}

	columns := make([]core.Column, len(header))
	for i, name := range header {
		columns[i] = core.Column{Name: name, Values: inferColumn(raw[i])}
	}
	return core.NewFrame(columns...)
}

type cellKind int

const (
	cellInt cellKind = iota
	cellFloat
	cellBool
	cellString
)

func inferColumn(cells []string) []any {
	kind := cellInt
	for _, c := range cells {
		if c == "" {
			continue
		}
		for kind < cellString && !parses(c, kind) {
			kind++
		}
	}

	values := make([]any, len(cells))
	for i, c := range cells {
		if c == "" {
			continue
		}
		switch kind {
		case cellInt:
			values[i], _ = strconv.ParseInt(c, 10, 64)
		case cellFloat:
			values[i], _ = strconv.ParseFloat(c, 64)
		case cellBool:
			values[i] = strings.EqualFold(c, "true")
		default:
			values[i] = c
		}
	}
	return values
}

func parses(s string, kind cellKind) bool {
	switch kind {
	case cellInt:
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	case cellFloat:
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	case cellBool:
		return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
	default:
		return true
	}
}

// WriteCSV encodes f with a header row.
func WriteCSV(w io.Writer, f *core.Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, f.NumColumns())
	for i := 0; i < f.NumRows(); i++ {
		for c, v := range f.Row(i) {
			record[c] = FormatCell(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatCell renders a cell as text. Nested values are rendered as JSON.
func FormatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
