// Package params resolves stored operation parameters into typed values.
//
// Direct mode treats stored values as final and only validates them.
// Templated mode renders every string value as a template against the
// pipeline context, converts the rendered text to the field type, and then
// validates the rendered result.
package params

import (
	"fmt"

	"github.com/leapstack-labs/datarush/internal/convert"
	starctx "github.com/leapstack-labs/datarush/internal/starlark"
	"github.com/leapstack-labs/datarush/internal/template"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Resolve turns a stored model dict into a validated parameter object.
//
// In templated mode, for each field in declaration order: the stored value
// is used, or the field default when absent. Non-string values pass through
// unchanged. Empty strings, and templates that render to an empty string,
// omit the field so its default applies at validation. Rendering is strict:
// unresolved names fail.
func Resolve(schema *core.Schema, modelDict map[string]any, context map[string]any, advanced bool) (map[string]any, error) {
	if !advanced {
		return Validate(schema, modelDict)
	}

	rendered, err := Render(schema, modelDict, context)
	if err != nil {
		return nil, err
	}
	return Validate(schema, rendered)
}

// Render performs the templated-mode rendering and conversion step without
// the final validation.
func Render(schema *core.Schema, modelDict map[string]any, context map[string]any) (map[string]any, error) {
	var execCtx *starctx.ExecutionContext
	rendered := make(map[string]any, schema.Len())

	for _, f := range schema.Fields() {
		raw, ok := modelDict[f.Name]
		if !ok {
			if !f.HasDefault {
				continue
			}
			raw = f.Default
		}

		src, isString := raw.(string)
		if !isString {
			rendered[f.Name] = raw
			continue
		}
		if src == "" {
			continue
		}

		if execCtx == nil {
			var err error
			if execCtx, err = starctx.NewExecutionContext(context); err != nil {
				return nil, fmt.Errorf("building template context: %w", err)
			}
		}

		text, err := template.RenderString(src, f.Name, execCtx)
		if err != nil {
			return nil, fmt.Errorf("rendering field %q: %w", f.Name, err)
		}
		if text == "" {
			continue
		}

		v, err := convert.Convert(text, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		rendered[f.Name] = v
	}

	return rendered, nil
}
