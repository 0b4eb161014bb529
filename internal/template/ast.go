// Package template implements the parameter template language.
//
// {{ expr }} interpolates a Starlark expression, optionally followed by a
// filter pipeline ({{ parameters.n | int }}). {* stmt *} provides for/if
// control flow. Rendering is strict: an unresolved name is an error.
package template

// Position tracks source location for error reporting.
type Position struct {
	File   string
	Line   int
	Column int
}

// Node is the interface for all template AST nodes.
type Node interface {
	Pos() Position
	node()
}

type nodeBase struct {
	pos Position
}

func (n *nodeBase) Pos() Position { return n.pos }
func (n *nodeBase) node()         {}

// TextNode is literal text, passed through unchanged.
type TextNode struct {
	nodeBase
	Text string
}

// ExprNode is a {{ expr }} interpolation.
// Source is the text between the delimiters; Expr is the Starlark
// expression after filter pipelines were expanded into calls.
type ExprNode struct {
	nodeBase
	Source string
	Expr   string
}

// StmtKind identifies the type of control flow statement.
type StmtKind int

// StmtKind constants for control flow statement types.
const (
	StmtUnknown StmtKind = iota
	StmtFor              // {* for x in items: *}
	StmtEndFor           // {* endfor *}
	StmtIf               // {* if cond: *}
	StmtElif             // {* elif cond: *}
	StmtElse             // {* else: *}
	StmtEndIf            // {* endif *}
)

func (k StmtKind) String() string {
	switch k {
	case StmtFor:
		return "for"
	case StmtEndFor:
		return "endfor"
	case StmtIf:
		return "if"
	case StmtElif:
		return "elif"
	case StmtElse:
		return "else"
	case StmtEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// stmt is a parsed {* ... *} statement before blocks are assembled.
type stmt struct {
	kind     StmtKind
	expr     string   // condition (if/elif) or iterator expression (for)
	varNames []string // loop variables (for only)
	pos      Position
}

// ForBlock is a complete for loop with its body.
// With more than one variable each item is unpacked, as in Starlark.
type ForBlock struct {
	nodeBase
	VarNames []string
	IterExpr string
	Body     []Node
}

// IfBlock is a complete if/elif/else conditional.
type IfBlock struct {
	nodeBase
	Condition string
	Body      []Node
	ElseIfs   []Branch
	Else      []Node // nil when there is no else branch
}

// Branch is an elif branch.
type Branch struct {
	Condition string
	Body      []Node
	pos       Position
}

// Template is a parsed template.
type Template struct {
	Nodes []Node
	File  string
}

// IsStatic reports whether the template contains no expressions or statements.
func (t *Template) IsStatic() bool {
	for _, n := range t.Nodes {
		if _, ok := n.(*TextNode); !ok {
			return false
		}
	}
	return true
}
