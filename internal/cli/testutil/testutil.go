// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/stretchr/testify/require"
)

// ProjectConfig is the datarush.yaml written by SetupTestProject.
const ProjectConfig = `template_store:
  type: filesystem
  filesystem:
    path: .datarush
state_path: .datarush/state.db
log_level: error
`

// OrdersCSV is the sample data written by SetupTestProject.
const OrdersCSV = `item,price,quantity
apple,2,3
pear,5,1
fig,1,4
`

// OrdersFlow loads the orders, derives a total and sorts by it.
// The sort direction is a parameter.
const OrdersFlow = `datarush_version: "0.1.0"
parameters:
  - name: ascending
    type: boolean
    default: "False"
operations:
  - name: local_file
    data:
      path: data/orders.csv
      content_type: csv
      table_name: orders
  - name: derive_column
    data:
      table: orders
      target_column: total
      expression: price * quantity
  - name: sort
    data:
      table: orders
      column: total
      ascending: "{{ parameters.ascending }}"
    advanced_mode: true
`

// SetupTestProject creates a project directory with a config file, sample
// data and a template file at flows/orders.yaml.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"datarush.yaml":     ProjectConfig,
		"data/orders.csv":   OrdersCSV,
		"flows/orders.yaml": OrdersFlow,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// TestRenderer wraps a Renderer with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing into buffers.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the captured stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns the captured stderr.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that s contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// StripANSI removes ANSI escape codes from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
