package starlark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

func TestGoToStarlark(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantStr string
		wantErr bool
	}{
		{
			name:    "string",
			input:   "hello",
			wantStr: `"hello"`,
		},
		{
			name:    "int",
			input:   42,
			wantStr: "42",
		},
		{
			name:    "int64",
			input:   int64(123456789),
			wantStr: "123456789",
		},
		{
			name:    "float64",
			input:   3.14,
			wantStr: "3.14",
		},
		{
			name:    "bool true",
			input:   true,
			wantStr: "True",
		},
		{
			name:    "nil",
			input:   nil,
			wantStr: "None",
		},
		{
			name:    "string slice",
			input:   []string{"a", "b", "c"},
			wantStr: `["a", "b", "c"]`,
		},
		{
			name:    "any slice",
			input:   []any{"x", 1, true},
			wantStr: `["x", 1, True]`,
		},
		{
			name:    "map",
			input:   map[string]any{"key": "value"},
			wantStr: `{"key": "value"}`,
		},
		{
			name:    "unsupported",
			input:   struct{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GoToStarlark(tt.input)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.wantStr, got.String(), "GoToStarlark()")
		})
	}
}

func TestToGo(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input starlark.Value
		want  any
	}{
		{name: "string", input: starlark.String("hello"), want: "hello"},
		{name: "int", input: starlark.MakeInt(42), want: int64(42)},
		{name: "float", input: starlark.Float(3.14), want: 3.14},
		{name: "bool", input: starlark.Bool(false), want: false},
		{name: "none", input: starlark.None, want: nil},
		{name: "time", input: starlarktime.Time(ts), want: ts},
		{
			name:  "list",
			input: starlark.NewList([]starlark.Value{starlark.MakeInt(1), starlark.String("a")}),
			want:  []any{int64(1), "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToGo(tt.input)
			require.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.want, got, "ToGo()")
		})
	}
}

func TestNamespace_AttrAndIndex(t *testing.T) {
	v, err := GoToStarlark(map[string]any{"day": "2024-01-01", "n": 3})
	require.NoError(t, err)

	ns, ok := v.(*Namespace)
	require.True(t, ok, "expected *Namespace, got %T", v)

	day, err := ns.Attr("day")
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-01"`, day.String())

	n, found, err := ns.Get(starlark.String("n"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", n.String())

	_, err = ns.Attr("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"day", "n"}, ns.AttrNames())

	back, err := ToGo(ns)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"day": "2024-01-01", "n": int64(3)}, back)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "2024-05-01", FormatTime(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-05-01T10:30:00Z", FormatTime(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)))
}
