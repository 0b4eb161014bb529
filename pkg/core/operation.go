package core

import "context"

// Category groups operation kinds for listings.
type Category string

const (
	CategorySource         Category = "source"
	CategoryTransformation Category = "transformation"
	CategorySink           Category = "sink"
)

// Operator is a configured, executable pipeline step.
//
// Operate must not mutate tables it did not produce in this call. Replacing a
// table by storing a new one under the same name is allowed.
type Operator interface {
	Operate(ctx context.Context, ts *Tableset) (*Tableset, error)
	// Summary describes the resolved effect, e.g. "Sort orders by amount".
	Summary() string
}

// Kind describes an operation type: its identity, its parameter schema and
// a constructor taking validated, resolved parameters.
//
// Name is the persistence identity. Title is the display identity.
type Kind struct {
	Name        string
	Title       string
	Description string
	Category    Category
	Schema      *Schema
	New         func(params map[string]any) (Operator, error)
}

type templateContextKey struct{}

// WithTemplateContext attaches the pipeline template context to ctx so
// operators that evaluate expressions at run time can see it.
func WithTemplateContext(ctx context.Context, tc map[string]any) context.Context {
	return context.WithValue(ctx, templateContextKey{}, tc)
}

// TemplateContextFrom returns the template context attached to ctx, or nil.
func TemplateContextFrom(ctx context.Context) map[string]any {
	tc, _ := ctx.Value(templateContextKey{}).(map[string]any)
	return tc
}
