// Package operations provides the built-in operation kinds: sources that
// load tables, transformations that reshape them, and sinks that write them
// out.
//
// Each kind pairs a parameter schema with a config struct whose `param`
// tags match the schema field names. Resolved parameters are decoded into
// the struct, which is itself the Operator.
package operations

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/datarush/internal/params"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Builtins returns every built-in kind, sources first.
func Builtins() []core.Kind {
	return []core.Kind{
		LocalFile,
		HTTPSource,
		DatabaseQuery,

		Sort,
		Filter,
		SelectColumns,
		RenameTable,
		CopyTable,
		RenameColumn,
		DropNA,
		DeduplicateRows,
		FillNA,
		GroupBy,
		Join,
		ConcatenateTables,
		DeriveColumn,
		AddRangeColumn,
		AssertHasColumns,
		SQLQuery,

		LocalFileSink,
		DatabaseSink,
	}
}

// validator is implemented by configs that check more than the schema can
// express, e.g. that a regular expression compiles.
type validator interface {
	validate() error
}

// newOperator decodes resolved parameters into a fresh config of type T.
func newOperator[T any, PT interface {
	*T
	core.Operator
}](values map[string]any) (core.Operator, error) {
	op := PT(new(T))
	if err := params.Decode(values, op); err != nil {
		return nil, err
	}
	if v, ok := any(op).(validator); ok {
		if err := v.validate(); err != nil {
			return nil, err
		}
	}
	return op, nil
}

// columnsOrAll treats an empty column list as every column of f.
func columnsOrAll(f *core.Frame, columns []string) []string {
	if len(columns) == 0 {
		return f.ColumnNames()
	}
	return columns
}

func checkColumns(table string, f *core.Frame, columns ...string) error {
	var missing []string
	for _, c := range columns {
		if !f.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("table %q has no column(s) %s (available: %s)",
			table, strings.Join(missing, ", "), strings.Join(f.ColumnNames(), ", "))
	}
	return nil
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}

// compareValues orders two cells. Numbers compare numerically across
// int64 and float64; nil sorts after everything; values of different
// kinds order by kind name.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}

	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return cmpOrdered(fa, fb)
		}
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	}

	return strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
}

func cmpOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

// valueKey returns a string identifying a cell for hashing, so that equal
// values (1 and 1.0, the same instant in two zones) share a key.
func valueKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case time.Time:
		return "t:" + val.UTC().Format(time.RFC3339Nano)
	case string:
		return "s:" + val
	case bool:
		return fmt.Sprintf("b:%t", val)
	}
	if f, ok := asFloat(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func rowKey(f *core.Frame, row int, columns []string) string {
	var sb strings.Builder
	for _, c := range columns {
		values, _ := f.Column(c)
		sb.WriteString(valueKey(values[row]))
		sb.WriteByte(0)
	}
	return sb.String()
}
