package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/leapstack-labs/datarush/internal/params"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/require"
)

// counter records operator invocations keyed by "emit:<table>" and
// "add:<table>:<by>".
type counter map[string]int

// emitOp stores a one-row table with a single int64 column "n".
type emitOp struct {
	Table string `param:"table"`
	Value int    `param:"value"`
	calls counter
}

func (o *emitOp) Summary() string { return fmt.Sprintf("Emit %d into %s", o.Value, o.Table) }

func (o *emitOp) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	o.calls["emit:"+o.Table]++
	f, err := core.NewFrame(core.Column{Name: "n", Values: []any{int64(o.Value)}})
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.Table, f)
	return ts, nil
}

func emitKind(calls counter) core.Kind {
	return core.Kind{
		Name:     "emit",
		Title:    "Emit",
		Category: core.CategorySource,
		Schema: core.NewSchema(
			core.TableField("table", "Table"),
			core.IntField("value", "Value"),
		),
		New: func(values map[string]any) (core.Operator, error) {
			op := &emitOp{calls: calls}
			if err := params.Decode(values, op); err != nil {
				return nil, err
			}
			return op, nil
		},
	}
}

// addOp adds By to every value of column "n".
type addOp struct {
	Table string `param:"table"`
	By    int    `param:"by"`
	calls counter
}

func (o *addOp) Summary() string { return fmt.Sprintf("Add %d to %s", o.By, o.Table) }

func (o *addOp) Operate(_ context.Context, ts *core.Tableset) (*core.Tableset, error) {
	f, err := ts.Frame(o.Table)
	if err != nil {
		return nil, err
	}
	o.calls[fmt.Sprintf("add:%s:%d", o.Table, o.By)]++

	col, err := f.MustColumn("n")
	if err != nil {
		return nil, err
	}
	next := make([]any, len(col))
	for i, v := range col {
		next[i] = v.(int64) + int64(o.By)
	}
	out, err := f.WithColumn("n", next)
	if err != nil {
		return nil, err
	}
	ts.SetFrame(o.Table, out)
	return ts, nil
}

func addKind(calls counter) core.Kind {
	return core.Kind{
		Name:     "add",
		Title:    "Add",
		Category: core.CategoryTransformation,
		Schema: core.NewSchema(
			core.TableField("table", "Table"),
			core.IntField("by", "By").WithDefault(1),
		),
		New: func(values map[string]any) (core.Operator, error) {
			op := &addOp{calls: calls}
			if err := params.Decode(values, op); err != nil {
				return nil, err
			}
			return op, nil
		},
	}
}

// pipeline builds emit(a=1) -> add 10 -> add 100, which yields 111.
func pipeline(calls counter) *Dataflow {
	d := NewDataflow()
	d.Append(NewOperation(emitKind(calls), map[string]any{"table": "a", "value": 1}, false))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "a", "by": 10}, false))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "a", "by": 100}, false))
	return d
}

// values returns column "n" of the named table.
func values(t *testing.T, ts *core.Tableset, table string) []any {
	t.Helper()
	f, err := ts.Frame(table)
	require.NoError(t, err)
	col, ok := f.Column("n")
	require.True(t, ok, "table %s has no column n", table)
	return col
}
