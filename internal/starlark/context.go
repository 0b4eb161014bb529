package starlark

import (
	"fmt"
	"sort"
	"sync"

	"go.starlark.net/starlark"
)

// ExecutionContext provides all globals for Starlark template execution.
//
// Variables are the pipeline template context, e.g. {"parameters": {...}}.
// Top-level maps become Namespaces named after their key, so a missing
// parameter reports "parameters has no attribute ...".
type ExecutionContext struct {
	// Vars is the Go-side template context the globals were built from.
	Vars map[string]any

	// Extra holds additional globals added with AddGlobals.
	Extra starlark.StringDict

	// globals is the combined set of all globals for execution
	globals starlark.StringDict

	threads *threadPool
	mu      sync.RWMutex
}

// NewExecutionContext creates a context exposing vars plus the filter builtins.
func NewExecutionContext(vars map[string]any) (*ExecutionContext, error) {
	ctx := &ExecutionContext{
		Vars:    vars,
		Extra:   make(starlark.StringDict),
		threads: newThreadPool(0),
	}
	if err := ctx.buildGlobals(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// buildGlobals constructs the combined globals dict.
func (ctx *ExecutionContext) buildGlobals() error {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	globals := Predeclared()

	names := make([]string, 0, len(ctx.Vars))
	for name := range ctx.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var (
			v   starlark.Value
			err error
		)
		if m, ok := ctx.Vars[name].(map[string]any); ok {
			v, err = mapToNamespace(name, m)
		} else {
			v, err = GoToStarlark(ctx.Vars[name])
		}
		if err != nil {
			return fmt.Errorf("context variable %q: %w", name, err)
		}
		globals[name] = v
	}

	for name, v := range ctx.Extra {
		globals[name] = v
	}

	globals.Freeze()
	ctx.globals = globals
	return nil
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddGlobals adds extra globals to the context.
// Returns error if a name conflicts with a builtin or a context variable.
func (ctx *ExecutionContext) AddGlobals(extra starlark.StringDict) error {
	builtins := Predeclared()
	for name := range extra {
		if _, ok := builtins[name]; ok {
			return fmt.Errorf("global %q conflicts with builtin", name)
		}
		if _, ok := ctx.Vars[name]; ok {
			return fmt.Errorf("global %q conflicts with context variable", name)
		}
	}

	ctx.mu.Lock()
	for name, v := range extra {
		ctx.Extra[name] = v
	}
	ctx.mu.Unlock()

	return ctx.buildGlobals()
}

// EvalExpr evaluates a single Starlark expression and returns the result.
// This is used for {{ expr }} template expressions.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local variables.
// This is used for expressions inside loops where loop variables need to be in scope.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := ctx.threads.get(filename)

	// locals take precedence
	globals := ctx.Globals()
	if len(locals) > 0 {
		combined := make(starlark.StringDict, len(globals)+len(locals))
		for k, v := range globals {
			combined[k] = v
		}
		for k, v := range locals {
			combined[k] = v
		}
		globals = combined
	}

	result, err := starlark.EvalOptions(fileOptions, thread, filename, expr, globals)
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}
	ctx.threads.put(thread)

	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
// This is the typical use case for template expressions.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	return ctx.EvalExprStringWithLocals(expr, filename, line, nil)
}

// EvalExprStringWithLocals evaluates a Starlark expression with local variables and returns the string result.
func (ctx *ExecutionContext) EvalExprStringWithLocals(expr string, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ctx.EvalExprWithLocals(expr, filename, line, locals)
	if err != nil {
		return "", err
	}
	return ValueToString(result), nil
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}
