package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/datarush/internal/engine"
	"github.com/leapstack-labs/datarush/internal/state"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/leapstack-labs/datarush/internal/testutil"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersCSV = "item,price,quantity\napple,2,3\npear,5,1\n"

// ordersTemplate loads a CSV, derives a total and checks the columns.
func ordersTemplate() *templates.Template {
	return &templates.Template{
		Parameters: []core.ParameterSpec{
			{Name: "path", Type: core.ValueString, Required: true},
			{Name: "target", Type: core.ValueString, Default: "total"},
		},
		Operations: []templates.OperationEntry{
			{
				Name:         "local_file",
				Data:         map[string]any{"path": "{{ parameters.path }}", "content_type": "csv", "table_name": "orders"},
				AdvancedMode: true,
			},
			{
				Name:         "derive_column",
				Data:         map[string]any{"table": "orders", "target_column": "{{ parameters.target }}", "expression": "price * quantity"},
				AdvancedMode: true,
			},
			{
				Name: "assert_has_columns",
				Data: map[string]any{"table": "orders", "columns": []any{"item", "total"}},
			},
		},
		DatarushVersion: "0.1.0",
	}
}

func writeOrders(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(ordersCSV), 0o600))
	return path
}

func openHistory(t *testing.T) *state.SQLiteStore {
	t.Helper()
	store := state.NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunner_RunTemplate(t *testing.T) {
	ctx := context.Background()
	store := templates.NewFilesystemStore(t.TempDir())
	require.NoError(t, store.Write(ctx, ordersTemplate(), "orders", "1"))
	history := openHistory(t)

	r := New(store, WithHistory(history), WithLogger(testutil.NewTestLogger(t)))
	res, err := r.RunTemplate(ctx, "orders", "1", map[string]string{"path": writeOrders(t)})
	require.NoError(t, err)

	f, err := res.Tables.Frame("orders")
	require.NoError(t, err)
	total, err := f.MustColumn("total")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(6), int64(5)}, total)

	require.Len(t, res.Steps, 3)
	for _, step := range res.Steps {
		assert.Equal(t, engine.StatusSucceeded, step.Status)
	}

	require.NotEmpty(t, res.RunID)
	run, err := history.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.Equal(t, "orders", run.TemplateName)
	assert.Equal(t, "1", run.TemplateVersion)

	opRuns, err := history.GetOperationRuns(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, opRuns, 3)
	assert.Equal(t, "local_file", opRuns[0].Name)
	assert.Equal(t, 2, opRuns[0].Rows)
}

func TestRunner_FailedRunIsRecorded(t *testing.T) {
	ctx := context.Background()
	history := openHistory(t)
	r := New(nil, WithHistory(history))

	res, err := r.Run(ctx, ordersTemplate(), Source{Path: "inline"}, map[string]string{
		"path":   writeOrders(t),
		"target": "amount",
	})

	var opErr *core.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 2, opErr.Position)
	assert.Equal(t, "assert_has_columns", opErr.Name)

	run, err := history.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "total")
	assert.Equal(t, "inline", run.Source)

	opRuns, err := history.GetOperationRuns(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, opRuns, 3)
	assert.Equal(t, "failed", opRuns[2].Status)
	assert.NotEmpty(t, opRuns[2].Error)
}

func TestRunner_ParameterErrorsFailBeforeRecording(t *testing.T) {
	ctx := context.Background()
	history := openHistory(t)
	r := New(nil, WithHistory(history))

	_, err := r.Run(ctx, ordersTemplate(), Source{Path: "inline"}, nil)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = r.Run(ctx, ordersTemplate(), Source{Path: "inline"}, map[string]string{"path": "x", "colour": "red"})
	var unknown *core.UnknownParameterError
	require.ErrorAs(t, err, &unknown)

	runs, err := history.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunner_RunFile(t *testing.T) {
	dir := t.TempDir()
	data, err := templates.Encode(ordersTemplate())
	require.NoError(t, err)
	path := filepath.Join(dir, "orders.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var seen []engine.OperationStatus
	r := New(nil, WithObserver(engine.ObserverFunc(func(ev engine.OperationEvent) {
		seen = append(seen, ev.Status)
	})))

	res, err := r.RunFile(context.Background(), path, map[string]string{"path": writeOrders(t)})
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.Len(t, seen, 3)
}

func TestRunner_RunTemplateWithoutStore(t *testing.T) {
	_, err := New(nil).RunTemplate(context.Background(), "orders", "1", nil)
	assert.ErrorContains(t, err, "no template store")
}

func TestRunner_Preview(t *testing.T) {
	tmpl := ordersTemplate()
	tmpl.Operations[1].Disabled = true

	previews, err := New(nil).Preview(context.Background(), tmpl, map[string]string{"path": writeOrders(t)})

	// Without the derived column the assertion fails.
	var opErr *core.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Len(t, previews, 3)

	require.NotNil(t, previews[0].Tables)
	assert.True(t, previews[0].Tables.Has("orders"))
	assert.Nil(t, previews[1].Tables)
	assert.Nil(t, previews[2].Tables)
	assert.Equal(t, "derive_column", previews[1].Operation.Name())
}

type failingHistory struct{}

func (failingHistory) CreateRun(context.Context, *state.Run) (*state.Run, error) {
	return nil, errors.New("disk full")
}

func (failingHistory) CompleteRun(context.Context, string, state.RunStatus, string) error {
	return errors.New("disk full")
}

func (failingHistory) RecordOperationRun(context.Context, *state.OperationRun) error {
	return errors.New("disk full")
}

func TestRunner_HistoryFailuresDoNotFailRun(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	r := New(nil, WithHistory(failingHistory{}), WithLogger(logger))

	res, err := r.Run(context.Background(), ordersTemplate(), Source{}, map[string]string{"path": writeOrders(t)})
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.Contains(t, logs.String(), "failed to record run start")
}

func TestParseOverrides(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: map[string]string{}},
		{name: "pairs", pairs: []string{"a=1", "b=x=y"}, want: map[string]string{"a": "1", "b": "x=y"}},
		{name: "empty value", pairs: []string{"a="}, want: map[string]string{"a": ""}},
		{name: "later wins", pairs: []string{"a=1", "a=2"}, want: map[string]string{"a": "2"}},
		{name: "missing equals", pairs: []string{"a"}, wantErr: true},
		{name: "missing name", pairs: []string{"=1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverrides(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
