package template

import "fmt"

// Error is implemented by all template errors.
type Error interface {
	error
	Position() Position
}

type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }

func (e *baseError) Error() string {
	if e.pos.File != "" {
		return fmt.Sprintf("%s:%d:%d: %s", e.pos.File, e.pos.Line, e.pos.Column, e.msg)
	}
	return fmt.Sprintf("%d:%d: %s", e.pos.Line, e.pos.Column, e.msg)
}

// LexError is returned for malformed delimiters.
type LexError struct {
	baseError
}

// NewLexError creates a new lexer error.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError{pos: pos, msg: msg}}
}

// ParseError is returned for malformed statements.
type ParseError struct {
	baseError
}

// NewParseErrorf creates a new parser error with formatting.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// RenderError is returned when evaluation fails, e.g. an undefined variable.
type RenderError struct {
	baseError
	Cause error
}

// NewRenderErrorf creates a render error without an underlying cause.
func NewRenderErrorf(pos Position, format string, args ...any) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// WrapRenderError wraps an evaluation error.
func WrapRenderError(pos Position, msg string, cause error) *RenderError {
	return &RenderError{baseError: baseError{pos: pos, msg: msg}, Cause: cause}
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.baseError.Error(), e.Cause)
	}
	return e.baseError.Error()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// UnmatchedBlockError reports a block opener without its closer or the reverse.
type UnmatchedBlockError struct {
	baseError
	BlockKind StmtKind
}

var unmatchedMessages = map[StmtKind]string{
	StmtFor:    "unclosed 'for' block (missing 'endfor')",
	StmtIf:     "unclosed 'if' block (missing 'endif')",
	StmtEndFor: "'endfor' without matching 'for'",
	StmtEndIf:  "'endif' without matching 'if'",
	StmtElse:   "'else' without matching 'if'",
	StmtElif:   "'elif' without matching 'if'",
}

// NewUnmatchedBlockError creates a new unmatched block error.
func NewUnmatchedBlockError(pos Position, kind StmtKind) *UnmatchedBlockError {
	msg, ok := unmatchedMessages[kind]
	if !ok {
		msg = fmt.Sprintf("unmatched block: %s", kind)
	}
	return &UnmatchedBlockError{baseError: baseError{pos: pos, msg: msg}, BlockKind: kind}
}
