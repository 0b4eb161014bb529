package operations

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/leapstack-labs/datarush/internal/convert"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// GroupBy aggregates one column per group of key columns.
var GroupBy = core.Kind{
	Name:        "groupby",
	Title:       "Group By",
	Description: "Group a table by one or more columns and aggregate another",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("group_by", "Group By", "table"),
		core.ColumnField("aggregation_column", "Aggregation Column", "table"),
		core.EnumField("agg_func", "Aggregation Function", "sum", "mean", "min", "max", "count").
			WithDefault("count"),
		core.StringField("output_table", "Output Table").WithDefault("grouped_table"),
	),
	New: newOperator[groupBy, *groupBy],
}

type groupBy struct {
	Table       string   `param:"table"`
	GroupBy     []string `param:"group_by"`
	Column      string   `param:"aggregation_column"`
	AggFunc     string   `param:"agg_func"`
	OutputTable string   `param:"output_table"`
}

func (o *groupBy) validate() error {
	if len(o.GroupBy) == 0 {
		return errors.New("at least one group column is required")
	}
	if slices.Contains(o.GroupBy, o.Column) {
		return fmt.Errorf("column %q cannot be both grouped and aggregated", o.Column)
	}
	return nil
}

func (o *groupBy) Summary() string {
	return fmt.Sprintf("Group `%s` by %s and compute %s of `%s` as `%s`",
		o.Table, quoteList(o.GroupBy), o.AggFunc, o.Column, o.OutputTable)
}

// Operate emits one row per distinct key, ordered by key. Rows with an
// empty key cell are dropped; empty values are ignored by every function.
func (o *groupBy) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	if err := checkColumns(o.Table, f, append(slices.Clone(o.GroupBy), o.Column)...); err != nil {
		return nil, err
	}
	agg, _ := f.Column(o.Column)

	type group struct {
		first  int
		values []any
	}
	var order []string
	groups := map[string]*group{}
rows:
	for i := 0; i < f.NumRows(); i++ {
		for _, c := range o.GroupBy {
			if v, _ := f.Column(c); v[i] == nil {
				continue rows
			}
		}
		key := rowKey(f, i, o.GroupBy)
		g, ok := groups[key]
		if !ok {
			g = &group{first: i}
			groups[key] = g
			order = append(order, key)
		}
		if agg[i] != nil {
			g.values = append(g.values, agg[i])
		}
	}

	slices.SortStableFunc(order, func(a, b string) int {
		for _, c := range o.GroupBy {
			v, _ := f.Column(c)
			if n := compareValues(v[groups[a].first], v[groups[b].first]); n != 0 {
				return n
			}
		}
		return 0
	})

	firsts := make([]int, len(order))
	results := make([]any, len(order))
	for i, key := range order {
		g := groups[key]
		firsts[i] = g.first
		if results[i], err = aggregate(o.AggFunc, g.values); err != nil {
			return nil, fmt.Errorf("column %q: %w", o.Column, err)
		}
	}

	keys, err := f.Take(firsts).Select(o.GroupBy...)
	if err != nil {
		return nil, err
	}
	out, err := keys.WithColumn(o.Column, results)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.OutputTable, out)
	return ts, nil
}

// aggregate applies fn to non-empty values. Sums of integers stay integers.
func aggregate(fn string, values []any) (any, error) {
	switch fn {
	case "count":
		return int64(len(values)), nil
	case "min", "max":
		if len(values) == 0 {
			return nil, nil
		}
		best := values[0]
		for _, v := range values[1:] {
			c := compareValues(v, best)
			if (fn == "min" && c < 0) || (fn == "max" && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	nums, allInts, err := numbers(values)
	if err != nil {
		return nil, err
	}
	switch fn {
	case "sum":
		var sum float64
		for _, n := range nums {
			sum += n
		}
		if allInts {
			return int64(sum), nil
		}
		return sum, nil
	case "mean":
		if len(nums) == 0 {
			return nil, nil
		}
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums)), nil
	}
	return nil, fmt.Errorf("unknown aggregation %q", fn)
}

func numbers(values []any) ([]float64, bool, error) {
	out := make([]float64, 0, len(values))
	allInts := true
	for _, v := range values {
		n, ok := asFloat(v)
		if !ok {
			return nil, false, fmt.Errorf("%v is not a number", v)
		}
		if _, isFloat := v.(float64); isFloat {
			allInts = false
		}
		out = append(out, n)
	}
	return out, allInts, nil
}

// FillNA replaces empty cells.
var FillNA = core.Kind{
	Name:        "fillna",
	Title:       "Fill NA",
	Description: "Fill missing values in selected columns",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table").
			WithDefault([]any{}).
			WithDescription("Columns to fill, all when empty"),
		core.EnumField("method", "Fill Method", "ffill", "bfill", "mean", "median", "mode", "constant").
			WithDefault("constant"),
		core.StringField("value", "Fill Value").
			WithDefault("").
			WithDescription("Value used by the constant method"),
		core.IntField("limit", "Limit").
			WithDefault(0).
			WithDescription("Maximum consecutive fills for ffill and bfill, unlimited when 0"),
	),
	New: newOperator[fillNA, *fillNA],
}

type fillNA struct {
	Table   string   `param:"table"`
	Columns []string `param:"columns"`
	Method  string   `param:"method"`
	Value   string   `param:"value"`
	Limit   int      `param:"limit"`
}

func (o *fillNA) validate() error {
	if o.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func (o *fillNA) Summary() string {
	cols := "all columns"
	if len(o.Columns) > 0 {
		cols = quoteList(o.Columns)
	}
	method := o.Method
	if method == "constant" {
		method = fmt.Sprintf("constant value '%s'", o.Value)
	}
	return fmt.Sprintf("Fill empty values in %s of `%s` using %s", cols, o.Table, method)
}

func (o *fillNA) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	columns := columnsOrAll(f, o.Columns)
	if err := checkColumns(o.Table, f, columns...); err != nil {
		return nil, err
	}

	out := f
	for _, c := range columns {
		values, _ := f.Column(c)
		filled, err := o.fill(values)
		if err != nil {
			return nil, fmt.Errorf("filling column %q: %w", c, err)
		}
		if out, err = out.WithColumn(c, filled); err != nil {
			return nil, err
		}
	}
	ts.SetFrame(o.Table, out)
	return ts, nil
}

func (o *fillNA) fill(values []any) ([]any, error) {
	switch o.Method {
	case "ffill":
		return propagate(values, o.Limit, false), nil
	case "bfill":
		return propagate(values, o.Limit, true), nil
	case "mean", "median":
		nums, _, err := numbers(nonEmpty(values))
		if err != nil {
			return fillWith(values, mode(values)), nil
		}
		return fillWith(values, center(o.Method, nums)), nil
	case "mode":
		return fillWith(values, mode(values)), nil
	case "constant":
		if o.Value == "" {
			return slices.Clone(values), nil
		}
		v, err := constantFor(values, o.Value)
		if err != nil {
			return nil, err
		}
		return fillWith(values, v), nil
	}
	return nil, fmt.Errorf("unknown fill method %q", o.Method)
}

// propagate carries the last seen value forward, or backward when reverse
// is set, filling at most limit consecutive cells when limit > 0.
func propagate(values []any, limit int, reverse bool) []any {
	out := slices.Clone(values)
	n := len(out)
	var last any
	run := 0
	for k := 0; k < n; k++ {
		i := k
		if reverse {
			i = n - 1 - k
		}
		if out[i] != nil {
			last, run = out[i], 0
			continue
		}
		if last == nil || (limit > 0 && run >= limit) {
			continue
		}
		out[i] = last
		run++
	}
	return out
}

func fillWith(values []any, v any) []any {
	out := slices.Clone(values)
	if v == nil {
		return out
	}
	for i := range out {
		if out[i] == nil {
			out[i] = v
		}
	}
	return out
}

func nonEmpty(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

func center(method string, nums []float64) any {
	if len(nums) == 0 {
		return nil
	}
	if method == "mean" {
		var sum float64
		for _, n := range nums {
			sum += n
		}
		return sum / float64(len(nums))
	}
	sorted := slices.Clone(nums)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// mode returns the most frequent non-empty value; ties go to the smallest.
func mode(values []any) any {
	counts := map[string]int{}
	first := map[string]any{}
	for _, v := range values {
		if v == nil {
			continue
		}
		k := valueKey(v)
		if _, ok := first[k]; !ok {
			first[k] = v
		}
		counts[k]++
	}

	var best any
	bestCount := 0
	for k, c := range counts {
		v := first[k]
		if c > bestCount || (c == bestCount && compareValues(v, best) < 0) {
			best, bestCount = v, c
		}
	}
	return best
}

// constantFor converts text to the kind of value the column holds. Numeric
// columns take a number when text parses as one, time columns require a
// date, everything else gets the text.
func constantFor(values []any, text string) (any, error) {
	numeric, temporal := true, false
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64, float64:
		case time.Time:
			temporal, numeric = true, false
		default:
			numeric = false
		}
	}

	switch {
	case temporal:
		ts, err := convert.ParseTime(text)
		if err != nil {
			return nil, fmt.Errorf("cannot use %q as a date: %w", text, err)
		}
		return ts, nil
	case numeric:
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return text, nil
		}
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), nil
		}
		return n, nil
	}
	return text, nil
}
