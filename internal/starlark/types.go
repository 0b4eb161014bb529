// Package starlark provides the Starlark evaluation context used to render
// templated operation parameters and to evaluate per-row expressions.
package starlark

import (
	"fmt"
	"sort"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// Namespace is a string-keyed mapping that supports both attribute and index
// access, so templates can write parameters.day as well as parameters["day"].
type Namespace struct {
	name string
	dict *starlark.Dict
}

var (
	_ starlark.HasAttrs = (*Namespace)(nil)
	_ starlark.Mapping  = (*Namespace)(nil)
	_ starlark.Sequence = (*Namespace)(nil)
)

// NewNamespace wraps a dict. The name is used in error messages.
func NewNamespace(name string, dict *starlark.Dict) *Namespace {
	return &Namespace{name: name, dict: dict}
}

func (n *Namespace) String() string             { return n.dict.String() }
func (n *Namespace) Type() string               { return "namespace" }
func (n *Namespace) Freeze()                    { n.dict.Freeze() }
func (n *Namespace) Truth() starlark.Bool       { return n.dict.Truth() }
func (n *Namespace) Len() int                   { return n.dict.Len() }
func (n *Namespace) Iterate() starlark.Iterator { return n.dict.Iterate() }

func (n *Namespace) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: namespace")
}

// Attr returns the value stored under name. Absent keys produce an error
// naming the namespace so unresolved template variables fail loudly.
func (n *Namespace) Attr(name string) (starlark.Value, error) {
	v, found, err := n.dict.Get(starlark.String(name))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s has no attribute %q", n.name, name)
	}
	return v, nil
}

func (n *Namespace) AttrNames() []string {
	names := make([]string, 0, n.dict.Len())
	for _, k := range n.dict.Keys() {
		if s, ok := k.(starlark.String); ok {
			names = append(names, string(s))
		}
	}
	sort.Strings(names)
	return names
}

func (n *Namespace) Get(k starlark.Value) (starlark.Value, bool, error) {
	return n.dict.Get(k)
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, time.Time, []string, []any,
// map[string]any. Maps become Namespaces.
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case int32:
		return starlark.MakeInt64(int64(val)), nil

	case float64:
		return starlark.Float(val), nil

	case float32:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case time.Time:
		return starlarktime.Time(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []int:
		list := make([]starlark.Value, len(val))
		for i, n := range val {
			list[i] = starlark.MakeInt(n)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		return mapToNamespace("dict", val)

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func mapToNamespace(name string, m map[string]any) (*Namespace, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := starlark.NewDict(len(m))
	for _, k := range keys {
		sv, err := GoToStarlark(m[k])
		if err != nil {
			return nil, fmt.Errorf("dict key %q: %w", k, err)
		}
		if err := dict.SetKey(starlark.String(k), sv); err != nil {
			return nil, fmt.Errorf("dict setkey %q: %w", k, err)
		}
	}
	return NewNamespace(name, dict), nil
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, time.Time, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// very large integers fall back to their decimal text
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case starlarktime.Time:
		return time.Time(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		return dictToGo(val)

	case *Namespace:
		return dictToGo(val.dict)

	default:
		return val.String(), nil
	}
}

func dictToGo(d *starlark.Dict) (map[string]any, error) {
	result := make(map[string]any, d.Len())
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
		}
		gv, err := ToGo(item[1])
		if err != nil {
			return nil, fmt.Errorf("dict key %q: %w", key, err)
		}
		result[string(key)] = gv
	}
	return result, nil
}

// FormatTime renders a time the way templates print it: a bare date when the
// value is midnight UTC, RFC 3339 otherwise.
func FormatTime(ts time.Time) string {
	if ts.Location() == time.UTC && ts.Hour() == 0 && ts.Minute() == 0 && ts.Second() == 0 && ts.Nanosecond() == 0 {
		return ts.Format(time.DateOnly)
	}
	return ts.Format(time.RFC3339Nano)
}

// ValueToString renders a value as template output text.
func ValueToString(v starlark.Value) string {
	switch val := v.(type) {
	case starlark.String:
		return string(val)
	case starlark.NoneType:
		return ""
	case starlarktime.Time:
		return FormatTime(time.Time(val))
	default:
		return v.String()
	}
}
