// Package templates serializes dataflows and persists them in versioned
// template stores.
package templates

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/datarush/internal/engine"
	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/pkg/core"
	"gopkg.in/yaml.v3"
)

// Template is the serialized form of a dataflow.
type Template struct {
	Parameters      []core.ParameterSpec `json:"parameters" yaml:"parameters"`
	Operations      []OperationEntry     `json:"operations" yaml:"operations"`
	DatarushVersion string               `json:"datarush_version" yaml:"datarush_version"`
}

// OperationEntry is one serialized operation. Data holds the raw model dict.
type OperationEntry struct {
	Name         string         `json:"name" yaml:"name"`
	Data         map[string]any `json:"data" yaml:"data"`
	AdvancedMode bool           `json:"advanced_mode" yaml:"advanced_mode"`
	Disabled     bool           `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ToDataflow builds a dataflow from t, looking operations up by name in reg.
// Parameter defaults are not applied; callers set values explicitly.
func ToDataflow(t *Template, reg *registry.Registry, opts ...engine.Option) (*engine.Dataflow, error) {
	if reg == nil {
		reg = registry.Default()
	}

	flow := engine.NewDataflow(opts...)
	for _, p := range t.Parameters {
		if !p.Type.Valid() {
			return nil, fmt.Errorf("parameter %q: unknown type %q", p.Name, p.Type)
		}
	}
	flow.SetParameters(t.Parameters)

	for i, entry := range t.Operations {
		kind, err := reg.ByName(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("operation #%d: %w", i+1, err)
		}
		op := engine.NewOperation(kind, entry.Data, entry.AdvancedMode)
		op.SetEnabled(!entry.Disabled)
		flow.Append(op)
	}
	return flow, nil
}

// FromDataflow serializes flow. version is recorded as datarush_version.
func FromDataflow(flow *engine.Dataflow, version string) *Template {
	t := &Template{
		Parameters:      flow.Parameters(),
		Operations:      make([]OperationEntry, 0, flow.Len()),
		DatarushVersion: version,
	}
	if t.Parameters == nil {
		t.Parameters = []core.ParameterSpec{}
	}
	for _, op := range flow.Operations() {
		t.Operations = append(t.Operations, OperationEntry{
			Name:         op.Name(),
			Data:         op.ModelDict(),
			AdvancedMode: op.AdvancedMode(),
			Disabled:     !op.Enabled(),
		})
	}
	return t
}

// Format is a template encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the encoding from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a template in the given format.
func Decode(data []byte, format Format) (*Template, error) {
	var t Template
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse yaml template: %w", err)
		}
		for i := range t.Operations {
			t.Operations[i].Data = normalizeYAML(t.Operations[i].Data)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to parse json template: %w", err)
		}
		for i := range t.Operations {
			t.Operations[i].Data = normalizeJSON(t.Operations[i].Data)
		}
	default:
		return nil, fmt.Errorf("unknown template format %q", format)
	}

	return &t, nil
}

// Encode writes t as indented JSON, the stored representation.
func Encode(t *Template) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	return data, nil
}

// normalizeJSON turns json.Number into int or float64 so model dicts match
// what direct-mode validation expects.
func normalizeJSON(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeJSONValue(v)
	}
	return out
}

func normalizeJSONValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		return normalizeJSON(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeJSONValue(e)
		}
		return out
	default:
		return v
	}
}

// normalizeYAML converts map[any]any values produced by nested YAML
// mappings into map[string]any.
func normalizeYAML(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeYAMLValue(v)
	}
	return out
}

func normalizeYAMLValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return normalizeYAML(x)
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeYAMLValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeYAMLValue(e)
		}
		return out
	default:
		return v
	}
}

// LoadFile reads a JSON or YAML template file, chosen by extension.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	return Decode(data, FormatFromPath(path))
}
