package core

import (
	"fmt"
	"reflect"
	"time"
)

// Column is a named, ordered sequence of cell values.
//
// Cells hold nil, string, int64, float64, bool, time.Time, or nested
// []any / map[string]any values (e.g. parsed JSON).
type Column struct {
	Name   string
	Values []any
}

// Frame is a two-dimensional table of ordered columns with positional rows.
// All columns have the same length.
//
// Frames are treated as immutable: every method that changes shape or
// content returns a new Frame backed by freshly allocated slices.
type Frame struct {
	columns []Column
	index   map[string]int
}

// NewFrame creates a frame from the given columns.
// Column names must be unique and all columns must have equal length.
func NewFrame(columns ...Column) (*Frame, error) {
	f := &Frame{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if len(f.columns) > 0 && len(c.Values) != len(f.columns[0].Values) {
			return nil, fmt.Errorf("column %q has %d values, expected %d", c.Name, len(c.Values), len(f.columns[0].Values))
		}
		f.index[c.Name] = len(f.columns)
		f.columns = append(f.columns, Column{Name: c.Name, Values: c.Values})
	}
	return f, nil
}

// FrameFromRows builds a frame from column names and row-major data.
func FrameFromRows(names []string, rows [][]any) (*Frame, error) {
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Values: make([]any, len(rows))}
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", r, len(row), len(names))
		}
		for c, v := range row {
			columns[c].Values[r] = v
		}
	}
	return NewFrame(columns...)
}

// EmptyFrame returns a frame with no columns and no rows.
func EmptyFrame() *Frame {
	return &Frame{index: map[string]int{}}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if f == nil || len(f.columns) == 0 {
		return 0
	}
	return len(f.columns[0].Values)
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int {
	if f == nil {
		return 0
	}
	return len(f.columns)
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the frame has a column with the given name.
func (f *Frame) HasColumn(name string) bool {
	if f == nil {
		return false
	}
	_, ok := f.index[name]
	return ok
}

// Column returns the values of the named column.
// The returned slice must not be modified.
func (f *Frame) Column(name string) ([]any, bool) {
	if f == nil {
		return nil, false
	}
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i].Values, true
}

// MustColumn returns the named column or a descriptive error.
func (f *Frame) MustColumn(name string) ([]any, error) {
	values, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found (available: %v)", name, f.ColumnNames())
	}
	return values, nil
}

// Columns returns a copy of the column headers with their values.
func (f *Frame) Columns() []Column {
	if f == nil {
		return nil
	}
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Row returns the cells of row i in column order.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	for c := range f.columns {
		row[c] = f.columns[c].Values[i]
	}
	return row
}

// RowMap returns row i keyed by column name.
func (f *Frame) RowMap(i int) map[string]any {
	row := make(map[string]any, len(f.columns))
	for _, c := range f.columns {
		row[c.Name] = c.Values[i]
	}
	return row
}

// Rows returns all rows in row-major order.
func (f *Frame) Rows() [][]any {
	rows := make([][]any, f.NumRows())
	for i := range rows {
		rows[i] = f.Row(i)
	}
	return rows
}

// Take returns a new frame containing the rows at the given positions, in order.
func (f *Frame) Take(indices []int) *Frame {
	columns := make([]Column, len(f.columns))
	for c, col := range f.columns {
		values := make([]any, len(indices))
		for i, idx := range indices {
			values[i] = col.Values[idx]
		}
		columns[c] = Column{Name: col.Name, Values: values}
	}
	out, _ := NewFrame(columns...)
	return out
}

// Select returns a new frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		values, err := f.MustColumn(name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, Column{Name: name, Values: append([]any(nil), values...)})
	}
	return NewFrame(columns...)
}

// WithColumn returns a new frame with the column added, or replaced in place
// if a column with the same name exists.
func (f *Frame) WithColumn(name string, values []any) (*Frame, error) {
	if f.NumColumns() > 0 && len(values) != f.NumRows() {
		return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(values), f.NumRows())
	}
	columns := f.cloneColumns()
	if i, ok := f.index[name]; ok {
		columns[i] = Column{Name: name, Values: values}
	} else {
		columns = append(columns, Column{Name: name, Values: values})
	}
	return NewFrame(columns...)
}

// RenameColumn returns a new frame with column oldName renamed to newName.
func (f *Frame) RenameColumn(oldName, newName string) (*Frame, error) {
	i, ok := f.index[oldName]
	if !ok {
		return nil, fmt.Errorf("column %q not found", oldName)
	}
	columns := f.cloneColumns()
	columns[i].Name = newName
	return NewFrame(columns...)
}

// Copy returns a deep copy of the frame. Nested slices and maps are copied too.
func (f *Frame) Copy() *Frame {
	if f == nil {
		return nil
	}
	columns := make([]Column, len(f.columns))
	for i, c := range f.columns {
		values := make([]any, len(c.Values))
		for j, v := range c.Values {
			values[j] = CopyValue(v)
		}
		columns[i] = Column{Name: c.Name, Values: values}
	}
	out, _ := NewFrame(columns...)
	return out
}

// Equal reports whether two frames have the same columns and cell values.
func (f *Frame) Equal(other *Frame) bool {
	if f.NumColumns() != other.NumColumns() || f.NumRows() != other.NumRows() {
		return false
	}
	for i, c := range f.columns {
		oc := other.columns[i]
		if c.Name != oc.Name {
			return false
		}
		for j := range c.Values {
			if !ValuesEqual(c.Values[j], oc.Values[j]) {
				return false
			}
		}
	}
	return true
}

func (f *Frame) cloneColumns() []Column {
	columns := make([]Column, len(f.columns))
	for i, c := range f.columns {
		columns[i] = Column{Name: c.Name, Values: append([]any(nil), c.Values...)}
	}
	return columns
}

// ValuesEqual compares two cell values. Times compare by instant.
func ValuesEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

// CopyValue deep-copies nested []any and map[string]any values.
// Other values are returned as is.
func CopyValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CopyValue(item)
		}
		return out
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}
