package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_PlainText(t *testing.T) {
	input := "orders_2024"
	tokens, err := NewLexer(input, "table").Tokenize()
	require.NoError(t, err, "unexpected error")

	require.Len(t, tokens, 2, "expected 2 tokens") // TEXT + EOF
	assert.Equal(t, TokenText, tokens[0].Type)
	assert.Equal(t, input, tokens[0].Value)
	assert.Equal(t, TokenEOF, tokens[1].Type)
}

func TestLexer_Expressions(t *testing.T) {
	input := "orders_{{ parameters.year }}_{{ parameters.month | int }}.csv"
	tokens, err := NewLexer(input, "path").Tokenize()
	require.NoError(t, err, "unexpected error")

	expected := []struct {
		typ TokenType
		val string
	}{
		{TokenText, "orders_"},
		{TokenExpr, "parameters.year"},
		{TokenText, "_"},
		{TokenExpr, "parameters.month | int"},
		{TokenText, ".csv"},
		{TokenEOF, ""},
	}

	require.Len(t, tokens, len(expected), "wrong number of tokens")
	for i, exp := range expected {
		assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
		assert.Equal(t, exp.val, tokens[i].Value, "token[%d] value", i)
	}
}

func TestLexer_IfElse(t *testing.T) {
	input := `{* if parameters.full: *}
all
{* else: *}
recent
{* endif *}`
	tokens, err := NewLexer(input, "mode").Tokenize()
	require.NoError(t, err, "unexpected error")

	expectedTypes := []TokenType{TokenStmt, TokenText, TokenStmt, TokenText, TokenStmt, TokenEOF}
	require.Len(t, tokens, len(expectedTypes), "wrong number of tokens")
	for i, exp := range expectedTypes {
		assert.Equal(t, exp, tokens[i].Type, "token[%d] type", i)
	}
	assert.Equal(t, "if parameters.full:", tokens[0].Value)
}

func TestLexer_DelimitersInsideStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"closing braces in string", `{{ "}}" + "x" }}`, `"}}" + "x"`},
		{"dict literal", `{{ {"key": "value"}["key"] }}`, `{"key": "value"}["key"]`},
		{"escaped quote", `{{ "a\"}}" }}`, `"a\"}}"`},
		{"statement closer in string", `{* if x == "*}": *}`, `if x == "*}":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := NewLexer(tt.input, "value").Tokenize()
			require.NoError(t, err)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.want, tokens[0].Value)
		})
	}
}

func TestLexer_Unclosed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"expression", "orders_{{ parameters.year"},
		{"statement", "{* for x in items: x"},
		{"string inside expression", `{{ "open }}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input, "value").Tokenize()
			require.Error(t, err)

			lexErr, ok := err.(*LexError)
			require.True(t, ok, "expected LexError, got %T", err)
			assert.Equal(t, 1, lexErr.Position().Line, "expected line 1")
		})
	}
}

func TestLexer_PositionTracking(t *testing.T) {
	tokens, err := NewLexer("line1\nline2\n  {{ expr }}", "value").Tokenize()
	require.NoError(t, err, "unexpected error")

	exprToken := tokens[1]
	require.Equal(t, TokenExpr, exprToken.Type)
	assert.Equal(t, 3, exprToken.Pos.Line, "expected line 3")
	assert.Equal(t, 3, exprToken.Pos.Column, "expected column 3")
}

func TestLexer_WhitespaceHandling(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"{{  x  }}", "x"},
		{"{{x}}", "x"},
		{"{{  x + y  }}", "x + y"},
		{"{*  for x in y:  *}", "for x in y:"},
		{"{{ }}", ""},
	}

	for _, tt := range tests {
		tokens, err := NewLexer(tt.input, "value").Tokenize()
		require.NoError(t, err, "input %q: unexpected error", tt.input)
		assert.Equal(t, tt.expected, tokens[0].Value, "input %q", tt.input)
	}
}
