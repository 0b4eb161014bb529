package operations

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// Join types.
const (
	joinInner = "inner"
	joinLeft  = "left"
	joinRight = "right"
	joinOuter = "outer"
)

// Join combines two tables on equal key values.
//
// When both key columns share a name the result has a single key column.
// Other columns present on both sides get "_x" (left) and "_y" (right)
// suffixes. Empty keys never match.
var Join = core.Kind{
	Name:        "join",
	Title:       "Join Tables",
	Description: "Join two tables on specified columns",
	Category:    core.CategoryTransformation,
	Schema: core.NewSchema(
		core.TableField("left_table", "Left Table"),
		core.TableField("right_table", "Right Table"),
		core.ColumnField("left_on", "Left Column", "left_table"),
		core.ColumnField("right_on", "Right Column", "right_table"),
		core.EnumField("join_type", "Join Type", joinInner, joinLeft, joinRight, joinOuter).WithDefault(joinInner),
		core.StringField("output_table", "Output Table").WithDefault("joined_table"),
	),
	New: newOperator[joinTables, *joinTables],
}

type joinTables struct {
	LeftTable   string `param:"left_table"`
	RightTable  string `param:"right_table"`
	LeftOn      string `param:"left_on"`
	RightOn     string `param:"right_on"`
	JoinType    string `param:"join_type"`
	OutputTable string `param:"output_table"`
}

func (o *joinTables) Summary() string {
	return fmt.Sprintf("Join `%s` and `%s` on %s = %s with %s join as `%s`",
		o.LeftTable, o.RightTable, o.LeftOn, o.RightOn, o.JoinType, o.OutputTable)
}

// joinPair is one output row: a left and a right row index, -1 for none.
type joinPair struct{ left, right int }

func (o *joinTables) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	left, err := ts.Frame(o.LeftTable)
	if err != nil {
		return nil, err
	}
	right, err := ts.Frame(o.RightTable)
	if err != nil {
		return nil, err
	}
	leftKeys, err := left.MustColumn(o.LeftOn)
	if err != nil {
		return nil, err
	}
	rightKeys, err := right.MustColumn(o.RightOn)
	if err != nil {
		return nil, err
	}

	pairs := o.match(leftKeys, rightKeys)
	out, err := o.assemble(left, right, pairs)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.OutputTable, out)
	return ts, nil
}

func (o *joinTables) match(leftKeys, rightKeys []any) []joinPair {
	index := func(keys []any) map[string][]int {
		m := make(map[string][]int)
		for i, k := range keys {
			if k != nil {
				m[valueKey(k)] = append(m[valueKey(k)], i)
			}
		}
		return m
	}

	var pairs []joinPair
	switch o.JoinType {
	case joinRight:
		byLeft := index(leftKeys)
		for r, k := range rightKeys {
			matches := byLeft[valueKey(k)]
			if k == nil || len(matches) == 0 {
				pairs = append(pairs, joinPair{-1, r})
				continue
			}
			for _, l := range matches {
				pairs = append(pairs, joinPair{l, r})
			}
		}

	default:
		byRight := index(rightKeys)
		matchedRight := make([]bool, len(rightKeys))
		for l, k := range leftKeys {
			var matches []int
			if k != nil {
				matches = byRight[valueKey(k)]
			}
			if len(matches) == 0 {
				if o.JoinType != joinInner {
					pairs = append(pairs, joinPair{l, -1})
				}
				continue
			}
			for _, r := range matches {
				matchedRight[r] = true
				pairs = append(pairs, joinPair{l, r})
			}
		}
		if o.JoinType == joinOuter {
			for r, matched := range matchedRight {
				if !matched {
					pairs = append(pairs, joinPair{-1, r})
				}
			}
		}
	}
	return pairs
}

func (o *joinTables) assemble(left, right *core.Frame, pairs []joinPair) (*core.Frame, error) {
	sharedKey := o.LeftOn == o.RightOn

	rightNames := map[string]bool{}
	for _, n := range right.ColumnNames() {
		if !(sharedKey && n == o.RightOn) {
			rightNames[n] = true
		}
	}
	leftNames := map[string]bool{}
	for _, n := range left.ColumnNames() {
		if !(sharedKey && n == o.LeftOn) {
			leftNames[n] = true
		}
	}

	pick := func(values []any, idx int) any {
		if idx < 0 {
			return nil
		}
		return values[idx]
	}

	var columns []core.Column
	for _, col := range left.Columns() {
		name := col.Name
		values := make([]any, len(pairs))
		if sharedKey && name == o.LeftOn {
			rightKeys, _ := right.Column(o.RightOn)
			for i, p := range pairs {
				if p.left >= 0 {
					values[i] = col.Values[p.left]
				} else {
					values[i] = rightKeys[p.right]
				}
			}
		} else {
			if rightNames[name] {
				name += "_x"
			}
			for i, p := range pairs {
				values[i] = pick(col.Values, p.left)
			}
		}
		columns = append(columns, core.Column{Name: name, Values: values})
	}

	for _, col := range right.Columns() {
		if sharedKey && col.Name == o.RightOn {
			continue
		}
		name := col.Name
		if leftNames[name] {
			name += "_y"
		}
		values := make([]any, len(pairs))
		for i, p := range pairs {
			values[i] = pick(col.Values, p.right)
		}
		columns = append(columns, core.Column{Name: name, Values: values})
	}

	return core.NewFrame(columns...)
}
