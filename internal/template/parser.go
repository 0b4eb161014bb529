package template

import (
	"regexp"
	"strings"
)

var (
	forStmtRe  = regexp.MustCompile(`^for\s+([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s+in\s+(.+?)\s*:?$`)
	ifStmtRe   = regexp.MustCompile(`^if\s+(.+?)\s*:?$`)
	elifStmtRe = regexp.MustCompile(`^elif\s+(.+?)\s*:?$`)
	elseStmtRe = regexp.MustCompile(`^else\s*:?$`)
)

// ParseString parses template source. file names the source in errors.
func ParseString(input, file string) (*Template, error) {
	tokens, err := NewLexer(input, file).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	nodes, closer, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if closer != nil {
		return nil, NewUnmatchedBlockError(closer.pos, closer.kind)
	}
	return &Template{Nodes: nodes, File: file}, nil
}

type parser struct {
	tokens []Token
	pos    int
}

// parseBody parses nodes until EOF or a statement that closes or continues
// an enclosing block (endfor, endif, elif, else), which is returned unconsumed
// to the caller.
func (p *parser) parseBody() ([]Node, *stmt, error) {
	var nodes []Node

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++

		switch tok.Type {
		case TokenEOF:
			return nodes, nil, nil

		case TokenText:
			nodes = append(nodes, &TextNode{nodeBase: nodeBase{pos: tok.Pos}, Text: tok.Value})

		case TokenExpr:
			if tok.Value == "" {
				return nil, nil, NewParseErrorf(tok.Pos, "empty expression")
			}
			nodes = append(nodes, &ExprNode{
				nodeBase: nodeBase{pos: tok.Pos},
				Source:   tok.Value,
				Expr:     ExpandFilters(tok.Value),
			})

		case TokenStmt:
			s, err := parseStmt(tok)
			if err != nil {
				return nil, nil, err
			}
			switch s.kind {
			case StmtFor:
				block, err := p.parseFor(s)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			case StmtIf:
				block, err := p.parseIf(s)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, block)
			default:
				return nodes, s, nil
			}
		}
	}

	return nodes, nil, nil
}

func (p *parser) parseFor(open *stmt) (*ForBlock, error) {
	body, closer, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if closer == nil {
		return nil, NewUnmatchedBlockError(open.pos, StmtFor)
	}
	if closer.kind != StmtEndFor {
		return nil, NewUnmatchedBlockError(closer.pos, closer.kind)
	}
	return &ForBlock{
		nodeBase: nodeBase{pos: open.pos},
		VarNames: open.varNames,
		IterExpr: open.expr,
		Body:     body,
	}, nil
}

func (p *parser) parseIf(open *stmt) (*IfBlock, error) {
	block := &IfBlock{nodeBase: nodeBase{pos: open.pos}, Condition: open.expr}

	body, closer, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	block.Body = body

	for {
		if closer == nil {
			return nil, NewUnmatchedBlockError(open.pos, StmtIf)
		}

		switch closer.kind {
		case StmtEndIf:
			return block, nil

		case StmtElif:
			if block.Else != nil {
				return nil, NewParseErrorf(closer.pos, "'elif' after 'else'")
			}
			branch := Branch{Condition: closer.expr, pos: closer.pos}
			branch.Body, closer, err = p.parseBody()
			if err != nil {
				return nil, err
			}
			block.ElseIfs = append(block.ElseIfs, branch)

		case StmtElse:
			if block.Else != nil {
				return nil, NewParseErrorf(closer.pos, "duplicate 'else'")
			}
			var elseBody []Node
			elseBody, closer, err = p.parseBody()
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []Node{}
			}
			block.Else = elseBody

		default:
			return nil, NewUnmatchedBlockError(closer.pos, closer.kind)
		}
	}
}

// parseStmt classifies the content of a {* ... *} token.
func parseStmt(tok Token) (*stmt, error) {
	text := strings.TrimSpace(tok.Value)
	s := &stmt{pos: tok.Pos}

	switch {
	case text == "endfor":
		s.kind = StmtEndFor
	case text == "endif":
		s.kind = StmtEndIf
	case elseStmtRe.MatchString(text):
		s.kind = StmtElse
	case strings.HasPrefix(text, "for "):
		m := forStmtRe.FindStringSubmatch(text)
		if m == nil {
			return nil, NewParseErrorf(tok.Pos, "invalid for statement %q (expected 'for x in items:')", text)
		}
		s.kind = StmtFor
		for _, name := range strings.Split(m[1], ",") {
			s.varNames = append(s.varNames, strings.TrimSpace(name))
		}
		s.expr = ExpandFilters(m[2])
	case strings.HasPrefix(text, "if "):
		s.kind = StmtIf
		s.expr = ExpandFilters(ifStmtRe.FindStringSubmatch(text)[1])
	case strings.HasPrefix(text, "elif "):
		s.kind = StmtElif
		s.expr = ExpandFilters(elifStmtRe.FindStringSubmatch(text)[1])
	default:
		return nil, NewParseErrorf(tok.Pos, "unknown statement %q", text)
	}

	return s, nil
}
