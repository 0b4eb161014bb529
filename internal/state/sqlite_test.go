package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/leapstack-labs/datarush/internal/testutil"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"templates", "runs", "operation_runs"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_FileReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Write(ctx, &templates.Template{DatarushVersion: "0.1.0"}, "people", "1"))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()

	names, err := reopened.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, names)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.List(ctx)
	assert.ErrorContains(t, err, "database not opened")
	_, err = store.ListRuns(ctx, 10)
	assert.ErrorContains(t, err, "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Templates(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	tmpl := &templates.Template{
		Parameters: []core.ParameterSpec{{Name: "path", Type: core.ValueString, Required: true}},
		Operations: []templates.OperationEntry{{
			Name: "local_file",
			Data: map[string]any{"path": "{{ parameters.path }}", "table_name": "people"},
			AdvancedMode: true,
		}},
		DatarushVersion: "0.1.0",
	}

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Write(ctx, tmpl, "people", "2"))
	require.NoError(t, store.Write(ctx, tmpl, "people", "1"))
	require.NoError(t, store.Write(ctx, tmpl, "orders", "1"))

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "people"}, names)

	versions, err := store.ListVersions(ctx, "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, versions)

	got, err := store.Read(ctx, "people", "1")
	require.NoError(t, err)
	assert.Equal(t, tmpl, got)

	err = store.Write(ctx, tmpl, "people", "1")
	var exists *core.TemplateAlreadyExistsError
	assert.ErrorAs(t, err, &exists)

	_, err = store.Read(ctx, "people", "3")
	var notFound *core.TemplateNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		status     RunStatus
		errMsg     string
		wantErrMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed", status: RunStatusFailed, errMsg: "boom", wantErrMsg: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := setupTestStore(t)

			run, err := store.CreateRun(ctx, &Run{
				TemplateName:    "people",
				TemplateVersion: "1",
				Parameters:      map[string]string{"path": "in.csv"},
			})
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.wantErrMsg, got.Error)
			assert.Equal(t, "people", got.TemplateName)
			assert.Equal(t, map[string]string{"path": "in.csv"}, got.Parameters)
			require.NotNil(t, got.CompletedAt)
			assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)
		})
	}
}

func TestSQLiteStore_RunErrors(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	_, err := store.GetRun(ctx, "nope")
	assert.ErrorContains(t, err, "run not found")

	err = store.CompleteRun(ctx, "nope", RunStatusCompleted, "")
	assert.ErrorContains(t, err, "run not found")

	err = store.RecordOperationRun(ctx, &OperationRun{RunID: "nope", Name: "sort", Status: "succeeded"})
	assert.Error(t, err, "foreign key must reject unknown runs")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	var ids []string
	for _, src := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		run, err := store.CreateRun(ctx, &Run{Source: src})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)
	assert.Equal(t, map[string]string{}, runs[0].Parameters)

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteStore_OperationRuns(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	run, err := store.CreateRun(ctx, &Run{Source: "flow.json"})
	require.NoError(t, err)

	records := []*OperationRun{
		{RunID: run.ID, Position: 1, Name: "sort", Summary: "Sort `people`", Status: "failed", Error: "no column"},
		{RunID: run.ID, Position: 0, Name: "local_file", Status: "succeeded", Rows: 3, Duration: 1500 * time.Millisecond},
	}
	for _, r := range records {
		require.NoError(t, store.RecordOperationRun(ctx, r))
		assert.NotEmpty(t, r.ID)
	}

	got, err := store.GetOperationRuns(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "local_file", got[0].Name)
	assert.Equal(t, 3, got[0].Rows)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.Empty(t, got[0].Error)

	assert.Equal(t, "sort", got[1].Name)
	assert.Equal(t, "no column", got[1].Error)
	assert.Equal(t, "Sort `people`", got[1].Summary)
}
