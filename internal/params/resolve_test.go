package params

import (
	"errors"
	"testing"
	"time"

	"github.com/leapstack-labs/datarush/internal/template"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intSchema() *core.Schema {
	return core.NewSchema(core.IntField("x", "X"))
}

func TestResolve_Modes(t *testing.T) {
	t.Run("direct mode", func(t *testing.T) {
		got, err := Resolve(intSchema(), map[string]any{"x": 5}, nil, false)
		require.NoError(t, err)
		assert.Equal(t, 5, got["x"])
	})

	t.Run("templated mode", func(t *testing.T) {
		got, err := Resolve(intSchema(), map[string]any{"x": "{{ 2 + 3 }}"}, nil, true)
		require.NoError(t, err)
		assert.Equal(t, 5, got["x"])
	})
}

func TestResolve_Direct(t *testing.T) {
	schema := core.NewSchema(
		core.TableField("table", "Table"),
		core.ColumnsField("columns", "Columns", "table"),
		core.BoolField("ascending", "Ascending").WithDefault(true),
		core.FloatField("ratio", "Ratio").WithDefault(1.0),
		core.NewField("since", "Since", core.TypeDate).WithDefault(nil),
		core.EnumField("how", "How", "inner", "left").WithDefault("inner"),
	)

	tests := []struct {
		name      string
		modelDict map[string]any
		want      map[string]any
		wantProbs []string
	}{
		{
			name:      "defaults applied",
			modelDict: map[string]any{"table": "orders", "columns": []any{"id"}},
			want: map[string]any{
				"table": "orders", "columns": []any{"id"}, "ascending": true,
				"ratio": 1.0, "since": nil, "how": "inner",
			},
		},
		{
			name: "json-decoded values coerced",
			modelDict: map[string]any{
				"table": "orders", "columns": []string{"id", "name"},
				"ratio": float64(2), "since": "2024-01-31T10:00:00", "how": "left",
			},
			want: map[string]any{
				"table": "orders", "columns": []any{"id", "name"}, "ascending": true,
				"ratio": 2.0, "since": time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), "how": "left",
			},
		},
		{
			name:      "missing required and unknown fields",
			modelDict: map[string]any{"colums": []any{"id"}},
			wantProbs: []string{"table", "columns", "colums"},
		},
		{
			name:      "wrong types",
			modelDict: map[string]any{"table": 1, "columns": "id", "ascending": "yes", "how": "cross"},
			wantProbs: []string{"table", "columns", "ascending", "how"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(schema, tt.modelDict, nil, false)
			if tt.wantProbs != nil {
				var ve *core.ValidationError
				require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
				fields := make([]string, len(ve.Problems))
				for i, p := range ve.Problems {
					fields[i] = p.Field
				}
				assert.Equal(t, tt.wantProbs, fields)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Templated(t *testing.T) {
	schema := core.NewSchema(
		core.TableField("table", "Table"),
		core.IntField("limit", "Limit").WithDefault(10),
		core.BoolField("ascending", "Ascending").WithDefault(true),
		core.ColumnsField("columns", "Columns", "table").WithDefault([]any{}),
		core.NewField("day", "Day", core.TypeDate).WithDefault("{{ parameters.day }}"),
	)
	context := map[string]any{
		"parameters": map[string]any{
			"table": "orders",
			"n":     "25",
			"day":   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			"empty": "",
		},
	}

	tests := []struct {
		name      string
		modelDict map[string]any
		want      map[string]any
		wantErr   bool
		errTarget any
	}{
		{
			name: "rendered and converted",
			modelDict: map[string]any{
				"table":     "{{ parameters.table }}_v2",
				"limit":     "{{ parameters.n | int }}",
				"ascending": "False",
				"columns":   "[id, 'name']",
			},
			want: map[string]any{
				"table": "orders_v2", "limit": 25, "ascending": false,
				"columns": []any{"id", "name"}, "day": time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "empty render falls back to default",
			modelDict: map[string]any{
				"table": "t",
				"limit": "{{ parameters.empty }}",
			},
			want: map[string]any{
				"table": "t", "limit": 10, "ascending": true,
				"columns": []any{}, "day": time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "non-string values pass through",
			modelDict: map[string]any{"table": "t", "limit": 3, "ascending": false},
			want: map[string]any{
				"table": "t", "limit": 3, "ascending": false,
				"columns": []any{}, "day": time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "raw dict is not validated",
			modelDict: map[string]any{"table": "t", "not_a_field": "{{ nope }}"},
			want: map[string]any{
				"table": "t", "limit": 10, "ascending": true,
				"columns": []any{}, "day": time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "unresolved variable is an error",
			modelDict: map[string]any{"table": "{{ parameters.missing }}"},
			wantErr:   true,
			errTarget: new(*template.RenderError),
		},
		{
			name:      "conversion failure",
			modelDict: map[string]any{"table": "t", "limit": "{{ parameters.table }}"},
			wantErr:   true,
			errTarget: new(*core.ConversionError),
		},
		{
			name:      "missing required after rendering",
			modelDict: map[string]any{"table": "{{ parameters.empty }}"},
			wantErr:   true,
			errTarget: new(*core.ValidationError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(schema, tt.modelDict, context, true)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errTarget != nil {
					assert.True(t, errors.As(err, tt.errTarget), "unexpected error type: %v", err)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	type sortConfig struct {
		Table     string    `param:"table"`
		Columns   []string  `param:"columns"`
		Ascending bool      `param:"ascending"`
		Since     time.Time `param:"since"`
	}

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var cfg sortConfig
	err := Decode(map[string]any{
		"table": "orders", "columns": []any{"a", "b"}, "ascending": true, "since": since,
	}, &cfg)
	require.NoError(t, err)
	assert.Equal(t, sortConfig{Table: "orders", Columns: []string{"a", "b"}, Ascending: true, Since: since}, cfg)

	err = Decode(map[string]any{"bogus": 1}, &cfg)
	assert.Error(t, err)
}
