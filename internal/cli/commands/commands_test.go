package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/datarush/internal/cli/testutil"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVersion = "0.1.0"

// execute runs cmd with args and returns captured stdout and stderr.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// setupProject creates a project and makes it the working directory.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)
	return dir
}

func importOrders(t *testing.T, version string) {
	t.Helper()
	_, _, err := execute(t, NewTemplatesCommand(testVersion),
		"import", "flows/orders.yaml", "--name", "orders", "--version", version)
	require.NoError(t, err)
}

func TestRunCommand_File(t *testing.T) {
	setupProject(t)

	out, errOut, err := execute(t, NewRunCommand(), "--file", "flows/orders.yaml", "--show-tables")
	require.NoError(t, err)

	assert.Contains(t, errOut, "[1/3]")
	assert.Contains(t, errOut, "completed in")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "(3 rows)")
	assert.Less(t, strings.Index(out, "apple"), strings.Index(out, "fig"), "sorted by total descending")
	testutil.AssertNoANSI(t, out)
}

func TestRunCommand_JSON(t *testing.T) {
	setupProject(t)
	t.Setenv("DATARUSH_OUTPUT", "json")

	out, _, err := execute(t, NewRunCommand(), "--file", "flows/orders.yaml", "--param", "ascending=True")
	require.NoError(t, err)

	var res RunOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "completed", res.Status)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, "local_file", res.Steps[0].Name)
	assert.Equal(t, "succeeded", res.Steps[2].Status)
	assert.Equal(t, 3, res.Steps[2].Rows)
}

func TestRunCommand_Errors(t *testing.T) {
	setupProject(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "undeclared parameter",
			args:    []string{"--file", "flows/orders.yaml", "--param", "colour=red"},
			wantErr: "colour",
		},
		{
			name:    "malformed parameter",
			args:    []string{"--file", "flows/orders.yaml", "--param", "ascending"},
			wantErr: "name=value",
		},
		{
			name:    "bad parameter value",
			args:    []string{"--file", "flows/orders.yaml", "--param", "ascending=yes"},
			wantErr: "ascending",
		},
		{
			name:    "missing template version",
			args:    []string{"--template", "orders", "--version", "9"},
			wantErr: "not found",
		},
		{
			name:    "no source",
			args:    []string{},
			wantErr: "template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, NewRunCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTemplatesCommand(t *testing.T) {
	setupProject(t)
	importOrders(t, "1")
	importOrders(t, "2")

	t.Run("list", func(t *testing.T) {
		out, _, err := execute(t, NewTemplatesCommand(testVersion), "list")
		require.NoError(t, err)
		assert.Contains(t, out, "orders")
	})

	t.Run("versions", func(t *testing.T) {
		t.Setenv("DATARUSH_OUTPUT", "json")
		out, _, err := execute(t, NewTemplatesCommand(testVersion), "versions", "orders")
		require.NoError(t, err)
		var rows []map[string]string
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		assert.Equal(t, []map[string]string{{"version": "1"}, {"version": "2"}}, rows)
	})

	t.Run("show yaml", func(t *testing.T) {
		out, _, err := execute(t, NewTemplatesCommand(testVersion), "show", "orders", "1", "--format", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "name: local_file")
		assert.Contains(t, out, "datarush_version: 0.1.0")
	})

	t.Run("import existing version", func(t *testing.T) {
		_, _, err := execute(t, NewTemplatesCommand(testVersion),
			"import", "flows/orders.yaml", "--name", "orders", "--version", "1")
		var exists *core.TemplateAlreadyExistsError
		require.ErrorAs(t, err, &exists)
		assert.Equal(t, "orders", exists.Name)
	})

	t.Run("import invalid template", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{"operations":[{"name":"no_such_op","data":{}}]}`), 0o600))
		_, _, err := execute(t, NewTemplatesCommand(testVersion),
			"import", bad, "--name", "bad", "--version", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no_such_op")
	})
}

func TestRunsCommand(t *testing.T) {
	setupProject(t)
	importOrders(t, "1")

	_, _, err := execute(t, NewRunCommand(), "--template", "orders", "--version", "1")
	require.NoError(t, err)

	t.Setenv("DATARUSH_OUTPUT", "json")
	out, _, err := execute(t, NewRunsCommand(), "list")
	require.NoError(t, err)

	var runs []RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "orders", runs[0].Template)
	assert.Equal(t, "1", runs[0].Version)
	assert.Equal(t, "completed", runs[0].Status)

	out, _, err = execute(t, NewRunsCommand(), "show", runs[0].ID)
	require.NoError(t, err)

	var run RunRecord
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	require.Len(t, run.Steps, 3)
	assert.Equal(t, "sort", run.Steps[2].Name)

	_, _, err = execute(t, NewRunsCommand(), "show", "does-not-exist")
	require.Error(t, err)
}

func TestRunsCommand_HistoryDisabled(t *testing.T) {
	dir := setupProject(t)
	cfg := strings.Replace(testutil.ProjectConfig, "state_path: .datarush/state.db", `state_path: ""`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "datarush.yaml"), []byte(cfg), 0o600))

	_, _, err := execute(t, NewRunsCommand(), "list")
	require.ErrorIs(t, err, errNoHistory)
}

func TestPreviewCommand(t *testing.T) {
	setupProject(t)
	t.Setenv("DATARUSH_OUTPUT", "json")

	out, _, err := execute(t, NewPreviewCommand(), "--file", "flows/orders.yaml", "--param", "ascending=True")
	require.NoError(t, err)

	var steps []PreviewStep
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 3)
	assert.NotContains(t, steps[0].Tables["orders"].Records[0], "total")
	assert.Contains(t, steps[1].Tables["orders"].Records[0], "total")
	assert.Equal(t, "fig", steps[2].Tables["orders"].Records[0]["item"])

	out, _, err = execute(t, NewPreviewCommand(), "--file", "flows/orders.yaml", "--step", "2", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Position)
	assert.Equal(t, 3, steps[0].Tables["orders"].Rows)
	assert.Len(t, steps[0].Tables["orders"].Records, 1)

	_, _, err = execute(t, NewPreviewCommand(), "--file", "flows/orders.yaml", "--step", "4")
	require.Error(t, err)
}

func TestOperationsCommand(t *testing.T) {
	out, _, err := execute(t, NewOperationsCommand(), "list")
	require.NoError(t, err)
	for _, name := range []string{"local_file", "derive_column", "sort", "join"} {
		assert.Contains(t, out, name)
	}

	t.Setenv("DATARUSH_OUTPUT", "json")
	out, _, err = execute(t, NewOperationsCommand(), "show", "sort")
	require.NoError(t, err)

	var kind KindOutput
	require.NoError(t, json.Unmarshal([]byte(out), &kind))
	assert.Equal(t, "sort", kind.Name)
	require.Len(t, kind.Fields, 3)
	assert.Equal(t, "ascending", kind.Fields[2].Name)
	assert.False(t, kind.Fields[2].Required)
	assert.Equal(t, true, kind.Fields[2].Default)

	_, _, err = execute(t, NewOperationsCommand(), "show", "nope")
	require.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, _, err := execute(t, NewInitCommand(), "project", "--example")
	require.NoError(t, err)
	assert.Contains(t, out, "datarush.yaml")

	for _, f := range []string{"datarush.yaml", ".gitignore", "data/orders.csv", "flows/orders.yaml"} {
		assert.FileExists(t, filepath.Join(dir, "project", filepath.FromSlash(f)))
	}
	assert.DirExists(t, filepath.Join(dir, "project", ".datarush", "templates"))

	_, _, err = execute(t, NewInitCommand(), "project")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, NewInitCommand(), "project", "--force")
	require.NoError(t, err)
}

func TestInitCommand_ExampleRuns(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, _, err := execute(t, NewInitCommand(), "--example")
	require.NoError(t, err)

	t.Setenv("DATARUSH_OUTPUT", "json")
	out, _, err := execute(t, NewRunCommand(), "--file", "flows/orders.yaml")
	require.NoError(t, err)

	var res RunOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "completed", res.Status)
	require.Len(t, res.Steps, 5)
	assert.Equal(t, 3, res.Steps[4].Rows)
}

func TestDoctorCommand(t *testing.T) {
	dir := setupProject(t)
	importOrders(t, "1")

	out, _, err := execute(t, NewDoctorCommand(testVersion))
	require.NoError(t, err)
	assert.Contains(t, out, "orders@1")
	assert.Contains(t, out, "0 error(s)")

	broken := filepath.Join(dir, ".datarush", "templates", "broken", "version=1")
	require.NoError(t, os.MkdirAll(broken, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "template.json"),
		[]byte(`{"operations":[{"name":"sort","data":{"table":"t"}}]}`), 0o600))

	t.Setenv("DATARUSH_OUTPUT", "json")
	out, _, err = execute(t, NewDoctorCommand(testVersion))
	require.Error(t, err)

	var report DoctorOutput
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Templates)
	assert.Equal(t, 1, report.ErrorCount)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, NewVersionCommand(testVersion))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "datarush v0.1.0\n"))
}
