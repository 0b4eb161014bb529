package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/datarush/internal/testutil"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataflow_RunInOrder(t *testing.T) {
	calls := counter{}
	d := pipeline(calls)

	ts, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(111)}, values(t, ts, "a"))
	assert.Same(t, ts, d.Current())
	assert.Equal(t, counter{"emit:a": 1, "add:a:10": 1, "add:a:100": 1}, calls)
}

func TestDataflow_RunIsDeterministic(t *testing.T) {
	d := pipeline(counter{})

	first, err := d.Run(context.Background())
	require.NoError(t, err)
	second, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.True(t, first.Equal(second))
}

func TestDataflow_MissingTable(t *testing.T) {
	calls := counter{}
	d := NewDataflow(WithLogger(testutil.NewTestLogger(t)))
	d.Append(NewOperation(emitKind(calls), map[string]any{"table": "a", "value": 1}, false))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "missing"}, false))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "a", "by": 5}, false))

	_, err := d.Run(context.Background())

	var opErr *core.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Position)
	assert.Equal(t, "add", opErr.Name)
	assert.Equal(t, "Add 1 to missing", opErr.Summary)

	var unknown *core.UnknownTableError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing", unknown.Name)

	// The current tableset holds the last successful step's output.
	assert.Equal(t, []any{int64(1)}, values(t, d.Current(), "a"))
	assert.Zero(t, calls["add:a:5"])
}

func TestDataflow_DisabledSkip(t *testing.T) {
	d := pipeline(counter{})
	require.NoError(t, d.SetEnabled(1, false))

	ts, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(101)}, values(t, ts, "a"))

	require.NoError(t, d.SetEnabled(2, false))
	ts, err = d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, values(t, ts, "a"))
}

func TestDataflow_StructuralEdits(t *testing.T) {
	calls := counter{}
	d := pipeline(calls)
	names := func() []string {
		var out []string
		for _, op := range d.Operations() {
			out = append(out, op.Summary())
		}
		return out
	}

	require.NoError(t, d.Move(2, 1))
	assert.Equal(t, []string{"Emit 1 into a", "Add 100 to a", "Add 10 to a"}, names())

	removed, err := d.Remove(0)
	require.NoError(t, err)
	assert.Equal(t, "emit", removed.Name())

	require.NoError(t, d.Insert(2, removed))
	assert.Equal(t, []string{"Add 100 to a", "Add 10 to a", "Emit 1 into a"}, names())

	tests := []struct {
		name string
		fn   func() error
	}{
		{"insert past end", func() error { return d.Insert(4, removed) }},
		{"insert negative", func() error { return d.Insert(-1, removed) }},
		{"move from out of range", func() error { return d.Move(3, 0) }},
		{"move to out of range", func() error { return d.Move(0, 3) }},
		{"remove out of range", func() error { _, err := d.Remove(3); return err }},
		{"enable out of range", func() error { return d.SetEnabled(-1, true) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var idxErr *core.IndexError
			require.ErrorAs(t, tt.fn(), &idxErr)
		})
	}
	assert.Equal(t, 3, d.Len())
}

func TestDataflow_Parameters(t *testing.T) {
	d := NewDataflow()
	d.SetParameters([]core.ParameterSpec{
		{Name: "n", Type: core.ValueInteger, Required: true},
		{Name: "table", Type: core.ValueString, Default: "a"},
	})

	require.NoError(t, d.SetParameterValue("n", 4))
	err := d.SetParameterValue("other", 1)
	var unknown *core.UnknownParameterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "other", unknown.Name)

	err = d.SetParameterValues(map[string]any{"table": "b", "nope": 1})
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, map[string]any{"n": 4}, d.ParameterValues(), "no partial update")

	require.NoError(t, d.SetParameterValues(map[string]any{"table": "b"}))
	assert.Equal(t, map[string]any{
		"parameters": map[string]any{"n": 4, "table": "b"},
	}, d.CurrentContext())

	d.SetParameters([]core.ParameterSpec{{Name: "n", Type: core.ValueInteger}})
	assert.Equal(t, map[string]any{"n": 4}, d.ParameterValues())
}

func TestDataflow_TemplatedRun(t *testing.T) {
	calls := counter{}
	d := NewDataflow()
	d.SetParameters([]core.ParameterSpec{{Name: "start", Type: core.ValueInteger}})
	require.NoError(t, d.SetParameterValue("start", 7))
	d.Append(NewOperation(emitKind(calls), map[string]any{"table": "a", "value": "{{ parameters.start }}"}, true))
	d.Append(NewOperation(addKind(calls), map[string]any{"table": "a", "by": "{{ parameters.start * 2 }}"}, true))

	ts, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(21)}, values(t, ts, "a"))
}

func TestDataflow_CancelledContext(t *testing.T) {
	calls := counter{}
	d := pipeline(calls)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, calls)
}

func TestDataflow_Observer(t *testing.T) {
	var events []OperationEvent
	d := pipeline(counter{})
	d.SetObserver(ObserverFunc(func(ev OperationEvent) { events = append(events, ev) }))
	require.NoError(t, d.SetEnabled(1, false))

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, StatusSucceeded, events[0].Status)
	assert.Equal(t, StatusSkipped, events[1].Status)
	assert.Equal(t, StatusSucceeded, events[2].Status)
	assert.Equal(t, "Add 100 to a", events[2].Summary)
	assert.Equal(t, 1, events[2].Rows)
}
