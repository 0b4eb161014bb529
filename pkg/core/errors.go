package core

import (
	"fmt"
	"strings"
)

// UnknownTableError is returned when an operation references a table
// that is absent from the current tableset.
type UnknownTableError struct {
	Name      string
	Available []string
}

func (e *UnknownTableError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("unknown table %q (tableset is empty)", e.Name)
	}
	return fmt.Sprintf("unknown table %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// FieldProblem describes why a single field failed validation.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError is returned when resolved parameters do not satisfy a schema.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConversionError is returned when text cannot be converted to a declared type.
type ConversionError struct {
	Value  string
	Target string
	Cause  error
}

func (e *ConversionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cannot convert %q to %s: %v", e.Value, e.Target, e.Cause)
	}
	return fmt.Sprintf("cannot convert %q to %s", e.Value, e.Target)
}

func (e *ConversionError) Unwrap() error {
	return e.Cause
}

// OperationError wraps a failure raised while resolving or executing an
// operation, attributing it to the operation's position and identity.
type OperationError struct {
	Position int
	Name     string
	Title    string
	Summary  string
	Err      error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation #%d %s (%s) failed: %v", e.Position+1, e.Name, e.Summary, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// TemplateAlreadyExistsError is returned by template stores when a
// template version is written twice.
type TemplateAlreadyExistsError struct {
	Name    string
	Version string
}

func (e *TemplateAlreadyExistsError) Error() string {
	return fmt.Sprintf("template %s version %s already exists", e.Name, e.Version)
}

// TemplateNotFoundError is returned by template stores for missing versions.
type TemplateNotFoundError struct {
	Name    string
	Version string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %s version %s not found", e.Name, e.Version)
}

// UnknownOperationError is returned by registry lookups for absent keys.
type UnknownOperationError struct {
	Key   string
	Index string // "name" or "title"
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("no operation registered with %s %q", e.Index, e.Key)
}

// UnknownParameterError is returned when a value is set for an undeclared parameter.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("parameter %q not found", e.Name)
}

// IndexError is returned when a position is outside [0, Len).
type IndexError struct {
	What  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s %d is out of range [0, %d)", e.What, e.Index, e.Len)
}
