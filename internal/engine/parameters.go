package engine

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/datarush/internal/convert"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// ParseParameterValues turns textual parameter input (CLI flags, query
// strings) into typed values.
//
// Each parameter takes its override if given, else its default. A required
// parameter with neither an override nor a non-empty default is an error,
// as is an override for an undeclared parameter. Optional parameters without
// a value are set to nil so templates can test for them.
func ParseParameterValues(specs []core.ParameterSpec, overrides map[string]string) (map[string]any, error) {
	declared := make(map[string]bool, len(specs))
	for _, p := range specs {
		declared[p.Name] = true
	}

	var unknown []string
	for name := range overrides {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &core.UnknownParameterError{Name: unknown[0]}
	}

	values := make(map[string]any, len(specs))
	var problems []core.FieldProblem
	for _, p := range specs {
		text, ok := overrides[p.Name]
		if !ok {
			text = p.Default
		}
		if !ok && text == "" {
			if p.Required {
				problems = append(problems, core.FieldProblem{Field: p.Name, Message: "required parameter not provided"})
				continue
			}
			values[p.Name] = nil
			continue
		}

		v, err := convert.ConvertValue(text, p.Type)
		if err != nil {
			problems = append(problems, core.FieldProblem{Field: p.Name, Message: err.Error()})
			continue
		}
		values[p.Name] = v
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid parameters: %w", &core.ValidationError{Problems: problems})
	}
	return values, nil
}
