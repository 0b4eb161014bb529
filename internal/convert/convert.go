// Package convert turns user-entered text into typed parameter values.
//
// It is used for templated-mode parameter resolution (after rendering) and
// for CLI-style pipeline parameter overrides.
package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// ErrUnsupportedType is the cause of a ConversionError for types without a parser.
var ErrUnsupportedType = errors.New("unsupported type")

type parser func(text string, t core.FieldType) (any, error)

// parsers is the conversion registry, keyed by field kind. It is filled in
// init because list parsing converts its elements through Convert.
var parsers map[core.FieldKind]parser

func init() {
	parsers = map[core.FieldKind]parser{
		core.KindString:   parseString,
		core.KindBool:     parseBool,
		core.KindInt:      parseInt,
		core.KindFloat:    parseFloat,
		core.KindDate:     parseDate,
		core.KindDateTime: parseDateTime,
		core.KindEnum:     parseEnum,
		core.KindList:     parseList,
	}
}

// dateTimeLayouts are tried in order for datetime values.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Convert parses text as the given field type.
//
// Values produced are string, bool, int, float64, time.Time or []any.
// Failures are *core.ConversionError.
func Convert(text string, t core.FieldType) (any, error) {
	p, ok := parsers[t.Kind]
	if !ok {
		return nil, &core.ConversionError{Value: text, Target: t.String(), Cause: ErrUnsupportedType}
	}
	v, err := p(text, t)
	if err != nil {
		var ce *core.ConversionError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &core.ConversionError{Value: text, Target: t.String(), Cause: err}
	}
	return v, nil
}

// ConvertValue parses text as a pipeline parameter value type.
func ConvertValue(text string, vt core.ValueType) (any, error) {
	ft, ok := vt.FieldType()
	if !ok {
		return nil, &core.ConversionError{Value: text, Target: string(vt), Cause: ErrUnsupportedType}
	}
	return Convert(text, ft)
}

// ParseTime parses an ISO-8601 date or datetime.
func ParseTime(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 date or datetime")
}

func parseString(text string, _ core.FieldType) (any, error) {
	return text, nil
}

func parseBool(text string, _ core.FieldType) (any, error) {
	switch text {
	case "True":
		return true, nil
	case "False":
		return false, nil
	}
	return nil, fmt.Errorf(`expected "True" or "False"`)
}

func parseInt(text string, _ core.FieldType) (any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return nil, errors.Unwrap(err)
	}
	return n, nil
}

func parseFloat(text string, _ core.FieldType) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, errors.Unwrap(err)
	}
	return f, nil
}

func parseDate(text string, _ core.FieldType) (any, error) {
	ts, err := ParseTime(text)
	if err != nil {
		return nil, err
	}
	return TruncateDate(ts), nil
}

func parseDateTime(text string, _ core.FieldType) (any, error) {
	return ParseTime(text)
}

func parseEnum(text string, t core.FieldType) (any, error) {
	for _, v := range t.Enum {
		if v == text {
			return text, nil
		}
	}
	return nil, fmt.Errorf("must be one of %s", strings.Join(t.Enum, ", "))
}

func parseList(text string, t core.FieldType) (any, error) {
	if t.Elem == nil {
		return nil, fmt.Errorf("list has no element type")
	}
	inner := strings.TrimSpace(text)
	inner = strings.TrimPrefix(inner, "[")
	inner = strings.TrimSuffix(inner, "]")
	if strings.TrimSpace(inner) == "" {
		return []any{}, nil
	}

	parts := strings.Split(inner, ",")
	out := make([]any, 0, len(parts))
	for _, part := range parts {
		item := strings.Trim(strings.TrimSpace(part), `'"`)
		v, err := Convert(item, *t.Elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// TruncateDate drops the time-of-day, keeping the calendar date in UTC.
func TruncateDate(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
