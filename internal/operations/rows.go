package operations

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/leapstack-labs/datarush/internal/convert"
	"github.com/leapstack-labs/datarush/internal/fileio"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Sort orders the rows of a table by one column. The sort is stable and
// empty cells go last in both directions.
var Sort = core.Kind{
	Name:        "sort",
	Title:       "Sort",
	Description: "Sort table by column",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table").WithDescription("Table to sort"),
		core.ColumnField("column", "Column", "table").WithDescription("Column to sort by"),
		core.BoolField("ascending", "Ascending").WithDefault(true),
	),
	New: newOperator[sortRows, *sortRows],
}

type sortRows struct {
	Table     string `param:"table"`
	Column    string `param:"column"`
	Ascending bool   `param:"ascending"`
}

func (o *sortRows) Summary() string {
	order := "descending"
	if o.Ascending {
		order = "ascending"
	}
	return fmt.Sprintf("Sort `%s` by %s in %s order", o.Table, o.Column, order)
}

func (o *sortRows) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	values, err := f.MustColumn(o.Column)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		va, vb := values[a], values[b]
		if va == nil || vb == nil || o.Ascending {
			return compareValues(va, vb)
		}
		return compareValues(vb, va)
	})

	ts.SetFrame(o.Table, f.Take(order))
	return ts, nil
}

// Filter operators.
const (
	opEquals      = "equals"
	opNotEquals   = "not equals"
	opContains    = "contains"
	opMatches     = "matches regex"
	opGreaterThan = "greater than"
	opLessThan    = "less than"
)

var valueTypes = []string{
	string(core.ValueString),
	string(core.ValueInteger),
	string(core.ValueFloat),
	string(core.ValueBoolean),
	string(core.ValueDate),
	string(core.ValueDateTime),
}

// Filter keeps the rows whose column value satisfies a condition.
// The comparison value is typed text, converted with value_type.
var Filter = core.Kind{
	Name:        "filter",
	Title:       "Filter",
	Description: "Filter table rows by column value",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table").WithDescription("Table to filter"),
		core.ColumnField("column", "Column", "table").WithDescription("Column to filter by"),
		core.EnumField("operator", "Operator", opEquals, opNotEquals, opContains, opMatches, opGreaterThan, opLessThan).
			WithDefault(opEquals),
		core.StringField("value", "Value").WithDescription("Value to compare with"),
		core.EnumField("value_type", "Value Type", valueTypes...).WithDefault(string(core.ValueString)),
		core.BoolField("negate", "Negate").WithDefault(false),
	),
	New: newOperator[filterRows, *filterRows],
}

type filterRows struct {
	Table     string `param:"table"`
	Column    string `param:"column"`
	Operator  string `param:"operator"`
	Value     string `param:"value"`
	ValueType string `param:"value_type"`
	Negate    bool   `param:"negate"`

	typed any
	re    *regexp.Regexp
}

func (o *filterRows) validate() error {
	switch o.Operator {
	case opMatches:
		re, err := regexp.Compile(o.Value)
		if err != nil {
			return fmt.Errorf("invalid regular expression: %w", err)
		}
		o.re = re
	case opContains:
	default:
		v, err := convert.ConvertValue(o.Value, core.ValueType(o.ValueType))
		if err != nil {
			return err
		}
		if i, ok := v.(int); ok {
			v = int64(i)
		}
		o.typed = v
	}
	return nil
}

func (o *filterRows) Summary() string {
	not := ""
	if o.Negate {
		not = "not "
	}
	return fmt.Sprintf("Filter `%s` where %s %s%s %s", o.Table, o.Column, not, o.Operator, o.Value)
}

func (o *filterRows) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	values, err := f.MustColumn(o.Column)
	if err != nil {
		return nil, err
	}

	var keep []int
	for i, v := range values {
		if o.match(v) != o.Negate {
			keep = append(keep, i)
		}
	}
	ts.SetFrame(o.Table, f.Take(keep))
	return ts, nil
}

func (o *filterRows) match(v any) bool {
	switch o.Operator {
	case opContains:
		return v != nil && strings.Contains(fileio.FormatCell(v), o.Value)
	case opMatches:
		return v != nil && o.re.MatchString(fileio.FormatCell(v))
	case opNotEquals:
		return !equalCells(v, o.typed)
	case opGreaterThan:
		return v != nil && compareValues(v, o.typed) > 0
	case opLessThan:
		return v != nil && compareValues(v, o.typed) < 0
	default:
		return equalCells(v, o.typed)
	}
}

func equalCells(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if _, ok := asFloat(a); ok {
		return compareValues(a, b) == 0
	}
	return core.ValuesEqual(a, b)
}

// DropNA removes rows with an empty cell in any of the given columns.
var DropNA = core.Kind{
	Name:        "dropna",
	Title:       "Drop Empty Rows",
	Description: "Drop rows that have empty values",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table").
			WithDefault([]any{}).
			WithDescription("Columns to check, all when empty"),
	),
	New: newOperator[dropNA, *dropNA],
}

type dropNA struct {
	Table   string   `param:"table"`
	Columns []string `param:"columns"`
}

func (o *dropNA) Summary() string {
	if len(o.Columns) == 0 {
		return fmt.Sprintf("Drop rows of `%s` with empty values", o.Table)
	}
	return fmt.Sprintf("Drop rows of `%s` with empty %s", o.Table, quoteList(o.Columns))
}

func (o *dropNA) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	columns := columnsOrAll(f, o.Columns)
	if err := checkColumns(o.Table, f, columns...); err != nil {
		return nil, err
	}

	var keep []int
rows:
	for i := 0; i < f.NumRows(); i++ {
		for _, c := range columns {
			values, _ := f.Column(c)
			if values[i] == nil {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	ts.SetFrame(o.Table, f.Take(keep))
	return ts, nil
}

// DeduplicateRows drops repeated rows, comparing the given columns.
var DeduplicateRows = core.Kind{
	Name:        "deduplicate_rows",
	Title:       "Deduplicate Rows",
	Description: "Remove duplicate rows",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table").
			WithDefault([]any{}).
			WithDescription("Columns that identify a duplicate, all when empty"),
		core.EnumField("keep", "Keep", "first", "last").WithDefault("first"),
	),
	New: newOperator[deduplicateRows, *deduplicateRows],
}

type deduplicateRows struct {
	Table   string   `param:"table"`
	Columns []string `param:"columns"`
	Keep    string   `param:"keep"`
}

func (o *deduplicateRows) Summary() string {
	return fmt.Sprintf("Remove duplicate rows from `%s` keeping the %s", o.Table, o.Keep)
}

func (o *deduplicateRows) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	columns := columnsOrAll(f, o.Columns)
	if err := checkColumns(o.Table, f, columns...); err != nil {
		return nil, err
	}

	n := f.NumRows()
	seen := make(map[string]bool, n)
	keep := make([]int, 0, n)
	visit := func(i int) {
		key := rowKey(f, i, columns)
		if !seen[key] {
			seen[key] = true
			keep = append(keep, i)
		}
	}

	if o.Keep == "last" {
		for i := n - 1; i >= 0; i-- {
			visit(i)
		}
		slices.Reverse(keep)
	} else {
		for i := 0; i < n; i++ {
			visit(i)
		}
	}

	ts.SetFrame(o.Table, f.Take(keep))
	return ts, nil
}
