package starlark

import (
	"fmt"
	"math"
	"strings"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables the dialect features expressions may use.
var fileOptions = &syntax.FileOptions{
	Set:       true,
	While:     true,
	Recursion: true,
}

// filterNames lists the builtins usable on the right side of a template
// pipeline, e.g. {{ parameters.name | upper }}. int, float and str come from
// the Starlark universe and are filters too.
var filterNames = []string{
	"upper", "lower", "trim", "default", "join", "length",
	"round", "date", "datetime", "replace", "int", "float", "str",
}

// IsFilter reports whether name can be used as a pipeline filter.
func IsFilter(name string) bool {
	for _, f := range filterNames {
		if f == name {
			return true
		}
	}
	return false
}

// Predeclared returns all builtin globals for template execution: the filter
// functions and the time module.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"upper":    starlark.NewBuiltin("upper", filterUpper),
		"lower":    starlark.NewBuiltin("lower", filterLower),
		"trim":     starlark.NewBuiltin("trim", filterTrim),
		"default":  starlark.NewBuiltin("default", filterDefault),
		"join":     starlark.NewBuiltin("join", filterJoin),
		"length":   starlark.NewBuiltin("length", filterLength),
		"round":    starlark.NewBuiltin("round", filterRound),
		"date":     starlark.NewBuiltin("date", filterDate),
		"datetime": starlark.NewBuiltin("datetime", filterDateTime),
		"replace":  starlark.NewBuiltin("replace", filterReplace),
		"time":     starlarktime.Module,
	}
}

func filterUpper(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.ToUpper(s)), nil
}

func filterLower(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.ToLower(s)), nil
}

func filterTrim(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
		return nil, err
	}
	return starlark.String(strings.TrimSpace(s)), nil
}

// default(value, fallback) returns fallback when value is None or empty.
func filterDefault(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value, fallback starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &value, &fallback); err != nil {
		return nil, err
	}
	if value == starlark.None {
		return fallback, nil
	}
	if s, ok := value.(starlark.String); ok && s == "" {
		return fallback, nil
	}
	return value, nil
}

// join(items, sep=", ") joins the string forms of items.
func filterJoin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		items starlark.Iterable
		sep   = ", "
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "items", &items, "sep?", &sep); err != nil {
		return nil, err
	}
	var parts []string
	iter := items.Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		parts = append(parts, ValueToString(x))
	}
	return starlark.String(strings.Join(parts, sep)), nil
}

func filterLength(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	n := starlark.Len(v)
	if n < 0 {
		return nil, fmt.Errorf("%s: value of type %s has no length", b.Name(), v.Type())
	}
	return starlark.MakeInt(n), nil
}

// round(x, ndigits=0) rounds half away from zero. With ndigits 0 the result is an int.
func filterRound(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x       starlark.Value
		ndigits int
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "ndigits?", &ndigits); err != nil {
		return nil, err
	}
	f, ok := starlark.AsFloat(x)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want number", b.Name(), x.Type())
	}
	if ndigits == 0 {
		return starlark.MakeInt64(int64(math.Round(f))), nil
	}
	pow := math.Pow(10, float64(ndigits))
	return starlark.Float(math.Round(f*pow) / pow), nil
}

// date(value, layout="2006-01-02") formats a time (or an ISO string) as a date.
func filterDate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return formatTime(b, args, kwargs, time.DateOnly)
}

// datetime(value, layout=RFC3339) formats a time (or an ISO string).
func filterDateTime(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return formatTime(b, args, kwargs, time.RFC3339)
}

func formatTime(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple, layout string) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &value, "layout?", &layout); err != nil {
		return nil, err
	}
	var ts time.Time
	switch v := value.(type) {
	case starlarktime.Time:
		ts = time.Time(v)
	case starlark.String:
		parsed, err := parseISO(string(v))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		ts = parsed
	default:
		return nil, fmt.Errorf("%s: got %s, want time or string", b.Name(), value.Type())
	}
	return starlark.String(ts.Format(layout)), nil
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", time.DateOnly} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as ISO-8601", s)
}

// replace(s, old, new) replaces every occurrence of old.
func filterReplace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var s, oldStr, newStr string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &s, &oldStr, &newStr); err != nil {
		return nil, err
	}
	return starlark.String(strings.ReplaceAll(s, oldStr, newStr)), nil
}
