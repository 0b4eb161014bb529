package params

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/leapstack-labs/datarush/internal/convert"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// Validate checks values against schema and returns the normalized parameter
// object: unknown fields and missing required fields are rejected, absent
// optional fields get their default, and every value is coerced to the
// canonical Go type of its field (string, bool, int, float64, time.Time, []any).
//
// Coercion is lax where JSON persistence loses type information: integral
// float64 to int, ISO-8601 strings to time.Time, and any slice to []any.
// All problems are reported together in a single *core.ValidationError.
func Validate(schema *core.Schema, values map[string]any) (map[string]any, error) {
	var problems []core.FieldProblem
	out := make(map[string]any, schema.Len())

	for _, f := range schema.Fields() {
		v, present := values[f.Name]
		if !present || v == nil {
			if f.HasDefault {
				out[f.Name] = copyDefault(f.Default)
				continue
			}
			problems = append(problems, core.FieldProblem{Field: f.Name, Message: "field required"})
			continue
		}

		coerced, err := Coerce(v, f.Type)
		if err != nil {
			problems = append(problems, core.FieldProblem{Field: f.Name, Message: err.Error()})
			continue
		}
		out[f.Name] = coerced
	}

	var unknown []string
	for name := range values {
		if _, ok := schema.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		problems = append(problems, core.FieldProblem{Field: name, Message: "unknown field"})
	}

	if len(problems) > 0 {
		return nil, &core.ValidationError{Problems: problems}
	}
	return out, nil
}

// Coerce converts v to the canonical Go type for t.
func Coerce(v any, t core.FieldType) (any, error) {
	switch t.Kind {
	case core.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch("string", v)
		}
		return s, nil

	case core.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, typeMismatch("bool", v)
		}
		return b, nil

	case core.KindInt:
		return coerceInt(v)

	case core.KindFloat:
		return coerceFloat(v)

	case core.KindDate:
		ts, err := coerceTime(v)
		if err != nil {
			return nil, err
		}
		return convert.TruncateDate(ts), nil

	case core.KindDateTime:
		return coerceTime(v)

	case core.KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch("string", v)
		}
		for _, allowed := range t.Enum {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %v", s, t.Enum)

	case core.KindList:
		return coerceList(v, t)

	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

func coerceInt(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("expected integer, got %v", f)
		}
		return int(f), nil
	}
	return nil, typeMismatch("integer", v)
}

func coerceFloat(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return nil, typeMismatch("float", v)
}

func coerceTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		ts, err := convert.ParseTime(val)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q: %w", val, err)
		}
		return ts, nil
	}
	return time.Time{}, typeMismatch("date/datetime", v)
}

func coerceList(v any, t core.FieldType) (any, error) {
	if t.Elem == nil {
		return nil, fmt.Errorf("list has no element type")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, typeMismatch("list", v)
	}

	out := make([]any, rv.Len())
	for i := range out {
		item, err := Coerce(rv.Index(i).Interface(), *t.Elem)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = item
	}
	return out, nil
}

func copyDefault(v any) any {
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...)
	}
	return v
}

func typeMismatch(want string, got any) error {
	return fmt.Errorf("expected %s, got %T", want, got)
}
