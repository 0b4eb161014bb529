package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"math"

	"github.com/leapstack-labs/datarush/internal/params"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Operation is one configured step of a Dataflow: an operation kind plus the
// raw parameter values the user entered (the model dict).
//
// Parameters are resolved lazily against the template context and cached
// until the model dict, the mode or the context changes.
type Operation struct {
	kind            core.Kind
	modelDict       map[string]any
	advanced        bool
	enabled         bool
	templateContext map[string]any

	resolved    map[string]any
	operator    core.Operator
	resolveErr  error
	resolvedSet bool
}

// NewOperation creates an enabled operation. In advanced mode string values
// of modelDict are templates rendered at run time; otherwise they are used
// as typed values.
func NewOperation(kind core.Kind, modelDict map[string]any, advanced bool) *Operation {
	return &Operation{
		kind:      kind,
		modelDict: cloneDict(modelDict),
		advanced:  advanced,
		enabled:   true,
	}
}

// Kind returns the operation kind.
func (o *Operation) Kind() core.Kind { return o.kind }

// Name returns the kind's persistence name.
func (o *Operation) Name() string { return o.kind.Name }

// Title returns the kind's display title.
func (o *Operation) Title() string { return o.kind.Title }

// Description returns the kind's description.
func (o *Operation) Description() string { return o.kind.Description }

// Schema returns the kind's parameter schema.
func (o *Operation) Schema() *core.Schema { return o.kind.Schema }

// ModelDict returns a deep copy of the raw parameter values.
func (o *Operation) ModelDict() map[string]any {
	return cloneDict(o.modelDict)
}

// SetModelDict replaces the raw parameter values with a copy of m.
func (o *Operation) SetModelDict(m map[string]any) {
	o.modelDict = cloneDict(m)
	o.invalidate()
}

func cloneDict(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return core.CopyValue(m).(map[string]any)
}

// SetValue sets a single raw parameter value.
func (o *Operation) SetValue(field string, v any) {
	o.modelDict[field] = v
	o.invalidate()
}

// AdvancedMode reports whether string values are rendered as templates.
func (o *Operation) AdvancedMode() bool { return o.advanced }

// SetAdvancedMode switches between direct and templated resolution.
func (o *Operation) SetAdvancedMode(advanced bool) {
	o.advanced = advanced
	o.invalidate()
}

// Enabled reports whether the operation runs. Disabled operations pass
// their input through unchanged.
func (o *Operation) Enabled() bool { return o.enabled }

// SetEnabled toggles the operation. Prefer Dataflow.SetEnabled or
// Session.SetEnabled, which also keep cached results consistent.
func (o *Operation) SetEnabled(enabled bool) { o.enabled = enabled }

// TemplateContext returns the context last injected with SetTemplateContext.
func (o *Operation) TemplateContext() map[string]any { return o.templateContext }

// SetTemplateContext injects the pipeline context used in advanced mode.
func (o *Operation) SetTemplateContext(tc map[string]any) {
	o.templateContext = tc
	o.invalidate()
}

func (o *Operation) invalidate() {
	o.resolved = nil
	o.operator = nil
	o.resolveErr = nil
	o.resolvedSet = false
}

func (o *Operation) resolve() {
	if o.resolvedSet {
		return
	}
	o.resolvedSet = true

	resolved, err := params.Resolve(o.kind.Schema, o.modelDict, o.templateContext, o.advanced)
	if err != nil {
		o.resolveErr = err
		return
	}
	op, err := o.kind.New(resolved)
	if err != nil {
		o.resolveErr = err
		return
	}
	o.resolved = resolved
	o.operator = op
}

// Params returns the resolved, validated parameters.
func (o *Operation) Params() (map[string]any, error) {
	o.resolve()
	if o.resolveErr != nil {
		return nil, o.resolveErr
	}
	return maps.Clone(o.resolved), nil
}

// Operator returns the configured operator built from the resolved parameters.
func (o *Operation) Operator() (core.Operator, error) {
	o.resolve()
	return o.operator, o.resolveErr
}

// Operate resolves the parameters and runs the operator on ts. The template
// context travels with ctx for operators that evaluate expressions.
func (o *Operation) Operate(ctx context.Context, ts *core.Tableset) (*core.Tableset, error) {
	op, err := o.Operator()
	if err != nil {
		return nil, err
	}
	out, err := op.Operate(core.WithTemplateContext(ctx, o.templateContext), ts)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("operator returned no tableset")
	}
	return out, nil
}

// Summary describes the resolved effect of the operation, or its title when
// the parameters do not resolve.
func (o *Operation) Summary() string {
	op, err := o.Operator()
	if err != nil {
		return o.kind.Title
	}
	return op.Summary()
}

// InputHash fingerprints everything that determines the operation's output
// given its input tableset: kind, model dict, template context and mode.
// encoding/json sorts map keys, so equal inputs hash equal. Non-finite
// floats, which encoding/json rejects, are written as tagged strings.
func (o *Operation) InputHash() (string, error) {
	payload := struct {
		Name            string `json:"name"`
		ModelDict       any    `json:"model_dict"`
		TemplateContext any    `json:"template_context"`
		AdvancedMode    bool   `json:"advanced_mode"`
	}{o.kind.Name, hashable(o.modelDict), hashable(o.templateContext), o.advanced}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hashing operation inputs: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// hashable rewrites NaN and ±Inf so the value can be JSON encoded.
func hashable(v any) any {
	switch val := v.(type) {
	case float64:
		return hashableFloat(val)
	case float32:
		return hashableFloat(float64(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = hashable(item)
		}
		return out
	case map[string]any:
		if val == nil {
			return nil
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = hashable(item)
		}
		return out
	default:
		return v
	}
}

func hashableFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return map[string]string{"float": "NaN"}
	case math.IsInf(f, 1):
		return map[string]string{"float": "+Inf"}
	case math.IsInf(f, -1):
		return map[string]string{"float": "-Inf"}
	}
	return f
}
