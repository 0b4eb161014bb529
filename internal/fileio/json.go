package fileio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// ReadJSON decodes a JSON array of objects. Columns appear in the order
// keys are first seen; records missing a key get nil for it.
func ReadJSON(r io.Reader) (*core.Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, fmt.Errorf("expected a JSON array of records")
	}

	var (
		names []string
		index = map[string]int{}
		rows  []map[string]any
	)
	for dec.More() {
		record, keys, err := decodeRecord(dec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(rows), err)
		}
		for _, k := range keys {
			if _, seen := index[k]; !seen {
				index[k] = len(names)
				names = append(names, k)
			}
		}
		rows = append(rows, record)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	columns := make([]core.Column, len(names))
	for i, name := range names {
		values := make([]any, len(rows))
		for r, row := range rows {
			values[r] = row[name]
		}
		columns[i] = core.Column{Name: name, Values: values}
	}
	return core.NewFrame(columns...)
}

// decodeRecord reads one object, keeping its key order.
func decodeRecord(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected an object")
	}

	record := map[string]any{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}
		record[key] = normalize(v)
		keys = append(keys, key)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return record, keys, nil
}

// normalize converts json.Number into int64 or float64, recursively.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalize(val[k])
		}
		return val
	default:
		return v
	}
}

// WriteJSON encodes f as an indented array of records in column order.
func WriteJSON(w io.Writer, f *core.Frame) error {
	bw := bufio.NewWriter(w)
	names := f.ColumnNames()

	keys := make([][]byte, len(names))
	for i, name := range names {
		b, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = b
	}

	_, _ = bw.WriteString("[")
	for r := 0; r < f.NumRows(); r++ {
		if r > 0 {
			_, _ = bw.WriteString(",")
		}
		_, _ = bw.WriteString("\n  {")
		for c, v := range f.Row(r) {
			if c > 0 {
				_, _ = bw.WriteString(", ")
			}
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", r, names[c], err)
			}
			_, _ = bw.Write(keys[c])
			_, _ = bw.WriteString(": ")
			_, _ = bw.Write(bytes.TrimSpace(b))
		}
		_, _ = bw.WriteString("}")
	}
	if f.NumRows() > 0 {
		_, _ = bw.WriteString("\n")
	}
	_, _ = bw.WriteString("]\n")
	return bw.Flush()
}
