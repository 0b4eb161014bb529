package template

import (
	"strings"
	"unicode/utf8"
)

// TokenType identifies the type of token.
type TokenType int

// TokenType constants for template token types.
const (
	TokenText TokenType = iota // Literal text
	TokenExpr                  // Expression content (between {{ and }})
	TokenStmt                  // Statement content (between {* and *})
	TokenEOF                   // End of input
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "TEXT"
	case TokenExpr:
		return "EXPR"
	case TokenStmt:
		return "STMT"
	case TokenEOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Token represents a lexical token.
type Token struct {
	Type  TokenType
	Value string
	Pos   Position
}

// Lexer tokenizes a template string.
type Lexer struct {
	input    string
	file     string
	pos      int // current position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new lexer for the given input.
// file names the template source in error positions, e.g. "sort.column".
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// Tokenize converts the input into a slice of tokens ending with TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}

	return tokens, nil
}

func (l *Lexer) nextToken() (Token, error) {
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.position()}, nil
	}

	switch {
	case l.matchString("{{"):
		return l.scanDelimited(TokenExpr, "}}", "unclosed expression: missing '}}'")
	case l.matchString("{*"):
		return l.scanDelimited(TokenStmt, "*}", "unclosed statement: missing '*}'")
	default:
		return l.scanText()
	}
}

// scanText scans literal text until a delimiter or EOF.
func (l *Lexer) scanText() (Token, error) {
	l.markStart()
	start := l.pos

	for l.pos < len(l.input) {
		if l.matchString("{{") || l.matchString("{*") {
			break
		}
		l.advance()
	}

	if l.pos == start {
		return Token{}, NewLexError(l.position(), "unexpected state in lexer")
	}

	return Token{
		Type:  TokenText,
		Value: l.input[start:l.pos],
		Pos:   l.startPosition(),
	}, nil
}

// scanDelimited scans the body of a {{ }} or {* *} block. The closing
// delimiter is only recognized outside string literals and, for
// expressions, outside nested braces such as dict literals.
func (l *Lexer) scanDelimited(typ TokenType, closer, unclosed string) (Token, error) {
	l.markStart()
	l.pos += 2
	l.col += 2

	bodyStart := l.pos
	depth := 0
	var quote rune

	for l.pos < len(l.input) {
		r := l.peek()

		if quote != 0 {
			if r == '\\' {
				l.advance()
			} else if r == quote {
				quote = 0
			}
			l.advance()
			continue
		}

		if depth == 0 && l.matchString(closer) {
			body := strings.TrimSpace(l.input[bodyStart:l.pos])
			l.pos += 2
			l.col += 2
			return Token{Type: typ, Value: body, Pos: l.startPosition()}, nil
		}

		switch r {
		case '"', '\'':
			quote = r
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
		l.advance()
	}

	return Token{}, NewLexError(l.startPosition(), unclosed)
}

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *Lexer) position() Position {
	return Position{File: l.file, Line: l.line, Column: l.col}
}

func (l *Lexer) startPosition() Position {
	return Position{File: l.file, Line: l.lastLine, Column: l.lastCol}
}
