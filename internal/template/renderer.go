package template

import (
	"fmt"
	"strings"

	starctx "github.com/leapstack-labs/datarush/internal/starlark"
	"go.starlark.net/starlark"
)

// maxLoopIterations bounds a single for block.
const maxLoopIterations = 100000

// Render evaluates a parsed template against ctx.
func Render(tmpl *Template, ctx *starctx.ExecutionContext) (string, error) {
	r := &renderer{ctx: ctx, file: tmpl.File}
	var sb strings.Builder
	if err := r.renderNodes(&sb, tmpl.Nodes, nil); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderString parses and renders input in one step.
func RenderString(input, file string, ctx *starctx.ExecutionContext) (string, error) {
	tmpl, err := ParseString(input, file)
	if err != nil {
		return "", err
	}
	if tmpl.IsStatic() {
		return input, nil
	}
	return Render(tmpl, ctx)
}

type renderer struct {
	ctx  *starctx.ExecutionContext
	file string
}

func (r *renderer) renderNodes(sb *strings.Builder, nodes []Node, locals starlark.StringDict) error {
	for _, n := range nodes {
		if err := r.renderNode(sb, n, locals); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(sb *strings.Builder, n Node, locals starlark.StringDict) error {
	switch node := n.(type) {
	case *TextNode:
		sb.WriteString(node.Text)
		return nil

	case *ExprNode:
		v, err := r.eval(node.Expr, node.Pos(), locals)
		if err != nil {
			return err
		}
		sb.WriteString(starctx.ValueToString(v))
		return nil

	case *ForBlock:
		return r.renderFor(sb, node, locals)

	case *IfBlock:
		return r.renderIf(sb, node, locals)

	default:
		return NewRenderErrorf(n.Pos(), "unexpected node %T", n)
	}
}

func (r *renderer) renderFor(sb *strings.Builder, block *ForBlock, locals starlark.StringDict) error {
	iterable, err := r.eval(block.IterExpr, block.Pos(), locals)
	if err != nil {
		return err
	}

	iter := starlark.Iterate(iterable)
	if iter == nil {
		return NewRenderErrorf(block.Pos(), "for: %s value is not iterable", iterable.Type())
	}
	defer iter.Done()

	var item starlark.Value
	for count := 0; iter.Next(&item); count++ {
		if count >= maxLoopIterations {
			return NewRenderErrorf(block.Pos(), "for: more than %d iterations", maxLoopIterations)
		}

		scope := make(starlark.StringDict, len(locals)+len(block.VarNames))
		for k, v := range locals {
			scope[k] = v
		}
		if err := bindLoopVars(scope, block.VarNames, item); err != nil {
			return WrapRenderError(block.Pos(), "for", err)
		}

		if err := r.renderNodes(sb, block.Body, scope); err != nil {
			return err
		}
	}
	return nil
}

func bindLoopVars(scope starlark.StringDict, names []string, item starlark.Value) error {
	if len(names) == 1 {
		scope[names[0]] = item
		return nil
	}

	seq, ok := item.(starlark.Indexable)
	if !ok {
		return fmt.Errorf("cannot unpack %s into %d variables", item.Type(), len(names))
	}
	if seq.Len() != len(names) {
		return fmt.Errorf("cannot unpack %d values into %d variables", seq.Len(), len(names))
	}
	for i, name := range names {
		scope[name] = seq.Index(i)
	}
	return nil
}

func (r *renderer) renderIf(sb *strings.Builder, block *IfBlock, locals starlark.StringDict) error {
	ok, err := r.truth(block.Condition, block.Pos(), locals)
	if err != nil {
		return err
	}
	if ok {
		return r.renderNodes(sb, block.Body, locals)
	}

	for _, branch := range block.ElseIfs {
		ok, err := r.truth(branch.Condition, branch.pos, locals)
		if err != nil {
			return err
		}
		if ok {
			return r.renderNodes(sb, branch.Body, locals)
		}
	}

	return r.renderNodes(sb, block.Else, locals)
}

func (r *renderer) truth(expr string, pos Position, locals starlark.StringDict) (bool, error) {
	v, err := r.eval(expr, pos, locals)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}

func (r *renderer) eval(expr string, pos Position, locals starlark.StringDict) (starlark.Value, error) {
	v, err := r.ctx.EvalExprWithLocals(expr, r.file, pos.Line, locals)
	if err != nil {
		return nil, WrapRenderError(pos, "evaluating expression", err)
	}
	return v, nil
}
