package template

import (
	"regexp"
	"strings"

	starctx "github.com/leapstack-labs/datarush/internal/starlark"
)

var filterCallRe = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?:\((.*)\))?$`)

// ExpandFilters rewrites a filter pipeline into nested calls:
//
//	parameters.n | int                -> int(parameters.n)
//	parameters.s | default("x") | upper -> upper(default(parameters.s, "x"))
//
// A top-level "|" is only treated as a pipe when every segment after it is a
// known filter; otherwise the expression is returned unchanged so Starlark's
// own "|" operator still works.
func ExpandFilters(expr string) string {
	segments := splitPipes(expr)
	if len(segments) < 2 {
		return expr
	}

	result := strings.TrimSpace(segments[0])
	if result == "" {
		return expr
	}
	for _, seg := range segments[1:] {
		m := filterCallRe.FindStringSubmatch(strings.TrimSpace(seg))
		if m == nil || !starctx.IsFilter(m[1]) {
			return expr
		}
		args := strings.TrimSpace(m[2])
		if args == "" {
			result = m[1] + "(" + result + ")"
		} else {
			result = m[1] + "(" + result + ", " + args + ")"
		}
	}
	return result
}

// splitPipes splits expr on "|" characters that are outside string literals
// and brackets and are not part of "|=".
func splitPipes(expr string) []string {
	var (
		segments []string
		depth    int
		quote    byte
		start    int
	)

	for i := 0; i < len(expr); i++ {
		c := expr[i]

		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 && (i+1 >= len(expr) || expr[i+1] != '=') {
				segments = append(segments, expr[start:i])
				start = i + 1
			}
		}
	}

	return append(segments, expr[start:])
}
