// Package engine runs pipelines of operations.
//
// A Dataflow is an ordered list of operations plus named pipeline
// parameters. Run executes the enabled operations in order, threading one
// Tableset through them. A Session runs the same Dataflow but reuses the
// results of unchanged leading steps between runs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/leapstack-labs/datarush/pkg/core"
)

// Dataflow is an ordered pipeline of operations and its parameters.
// A Dataflow is owned by one caller at a time; use a Session when edits and
// runs may race.
type Dataflow struct {
	operations []*Operation
	parameters []core.ParameterSpec
	values     map[string]any
	current    *core.Tableset

	logger   *slog.Logger
	observer Observer
}

// Option configures a Dataflow.
type Option func(*Dataflow)

// WithLogger sets the structured logger (nil uses discard).
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dataflow) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithObserver registers an observer for per-operation events.
func WithObserver(o Observer) Option {
	return func(d *Dataflow) {
		if o != nil {
			d.observer = o
		}
	}
}

// NewDataflow creates an empty pipeline.
func NewDataflow(opts ...Option) *Dataflow {
	d := &Dataflow{
		values:   map[string]any{},
		current:  core.NewTableset(),
		logger:   slog.New(slog.DiscardHandler),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetObserver replaces the observer; nil removes it.
func (d *Dataflow) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	d.observer = o
}

// Len returns the number of operations.
func (d *Dataflow) Len() int { return len(d.operations) }

// Operations returns the operations in execution order.
func (d *Dataflow) Operations() []*Operation { return slices.Clone(d.operations) }

// Operation returns the operation at position i.
func (d *Dataflow) Operation(i int) (*Operation, error) {
	if err := d.checkIndex(i, "operation"); err != nil {
		return nil, err
	}
	return d.operations[i], nil
}

// Append adds an operation at the end.
func (d *Dataflow) Append(op *Operation) {
	d.operations = append(d.operations, op)
}

// Insert places op at position i, shifting later operations; i may equal Len.
func (d *Dataflow) Insert(i int, op *Operation) error {
	if i < 0 || i > len(d.operations) {
		return &core.IndexError{What: "insert position", Index: i, Len: len(d.operations) + 1}
	}
	d.operations = slices.Insert(d.operations, i, op)
	return nil
}

// Move relocates the operation at from to position to.
func (d *Dataflow) Move(from, to int) error {
	if err := d.checkIndex(from, "move source"); err != nil {
		return err
	}
	if err := d.checkIndex(to, "move target"); err != nil {
		return err
	}
	op := d.operations[from]
	d.operations = slices.Delete(d.operations, from, from+1)
	d.operations = slices.Insert(d.operations, to, op)
	return nil
}

// Remove deletes and returns the operation at position i.
func (d *Dataflow) Remove(i int) (*Operation, error) {
	if err := d.checkIndex(i, "operation"); err != nil {
		return nil, err
	}
	op := d.operations[i]
	d.operations = slices.Delete(d.operations, i, i+1)
	return op, nil
}

// SetEnabled enables or disables the operation at position i.
func (d *Dataflow) SetEnabled(i int, enabled bool) error {
	op, err := d.Operation(i)
	if err != nil {
		return err
	}
	op.SetEnabled(enabled)
	return nil
}

func (d *Dataflow) checkIndex(i int, what string) error {
	if i < 0 || i >= len(d.operations) {
		return &core.IndexError{What: what, Index: i, Len: len(d.operations)}
	}
	return nil
}

// Parameters returns the declared pipeline parameters.
func (d *Dataflow) Parameters() []core.ParameterSpec { return slices.Clone(d.parameters) }

// SetParameters replaces the declared parameters. Values for parameters
// that are no longer declared are dropped.
func (d *Dataflow) SetParameters(specs []core.ParameterSpec) {
	d.parameters = slices.Clone(specs)
	for name := range d.values {
		if !d.declared(name) {
			delete(d.values, name)
		}
	}
}

func (d *Dataflow) declared(name string) bool {
	return slices.ContainsFunc(d.parameters, func(p core.ParameterSpec) bool { return p.Name == name })
}

// ParameterValues returns a copy of the current parameter values.
func (d *Dataflow) ParameterValues() map[string]any { return maps.Clone(d.values) }

// SetParameterValue sets one parameter value. The parameter must be declared.
func (d *Dataflow) SetParameterValue(name string, v any) error {
	if !d.declared(name) {
		return &core.UnknownParameterError{Name: name}
	}
	d.values[name] = v
	return nil
}

// SetParameterValues sets several values. Nothing is changed if any name is
// undeclared.
func (d *Dataflow) SetParameterValues(values map[string]any) error {
	for name := range values {
		if !d.declared(name) {
			return &core.UnknownParameterError{Name: name}
		}
	}
	maps.Copy(d.values, values)
	return nil
}

// CurrentContext is the template context injected into every operation.
func (d *Dataflow) CurrentContext() map[string]any {
	return map[string]any{"parameters": maps.Clone(d.values)}
}

// Current returns the tableset produced by the last run.
func (d *Dataflow) Current() *core.Tableset { return d.current }

// Run executes every enabled operation in order starting from an empty
// tableset. On failure the current tableset holds the output of the last
// successful step and the error is an *core.OperationError.
func (d *Dataflow) Run(ctx context.Context) (*core.Tableset, error) {
	return d.run(ctx, nil)
}

// run is shared by Dataflow.Run and Session.Run; cache is nil for the former.
func (d *Dataflow) run(ctx context.Context, cache *runCache) (*core.Tableset, error) {
	start := time.Now()
	d.logger.Info("starting run", "operations", len(d.operations), "cached", cache != nil)

	d.current = core.NewTableset()
	tc := d.CurrentContext()
	cache.begin()

	for i, op := range d.operations {
		if err := ctx.Err(); err != nil {
			d.logger.Info("run cancelled", "position", i)
			return d.current, fmt.Errorf("run cancelled before operation #%d: %w", i+1, err)
		}

		if !op.Enabled() {
			d.logger.Debug("skipping disabled operation", "position", i, "operation", op.Name())
			d.observer.OperationFinished(OperationEvent{Position: i, Operation: op, Status: StatusSkipped, Summary: op.Summary()})
			continue
		}

		op.SetTemplateContext(tc)

		opStart := time.Now()
		result, cached, err := d.step(ctx, cache, i, op)
		elapsed := time.Since(opStart)

		if err != nil {
			opErr := &core.OperationError{
				Position: i,
				Name:     op.Name(),
				Title:    op.Title(),
				Summary:  op.Summary(),
				Err:      err,
			}
			d.logger.Debug("operation failed", "position", i, "operation", op.Name(), "error", err)
			d.observer.OperationFinished(OperationEvent{
				Position: i, Operation: op, Status: StatusFailed,
				Summary: opErr.Summary, Duration: elapsed, Err: opErr,
			})
			d.logger.Info("run failed", "position", i, "operation", op.Name(), "duration_ms", time.Since(start).Milliseconds())
			return d.current, opErr
		}

		d.current = result
		status := StatusSucceeded
		if cached {
			status = StatusCached
			d.logger.Debug("operation cached", "position", i, "operation", op.Name())
		} else {
			d.logger.Debug("operation executed", "position", i, "operation", op.Name(), "tables", result.Len(), "exec_ms", elapsed.Milliseconds())
		}
		d.observer.OperationFinished(OperationEvent{
			Position: i, Operation: op, Status: status,
			Summary: op.Summary(), Duration: elapsed, Rows: totalRows(result),
		})
	}

	d.logger.Info("run completed", "tables", d.current.Len(), "duration_ms", time.Since(start).Milliseconds())
	return d.current, nil
}

// step produces the output of one enabled operation, from the cache when
// possible.
func (d *Dataflow) step(ctx context.Context, cache *runCache, i int, op *Operation) (*core.Tableset, bool, error) {
	if cache == nil {
		out, err := op.Operate(ctx, d.current)
		return out, false, err
	}

	h, err := op.InputHash()
	if err != nil {
		return nil, false, err
	}
	if snapshot, ok := cache.lookup(i, h); ok {
		return snapshot, true, nil
	}

	out, err := op.Operate(ctx, d.current)
	if err != nil {
		return nil, false, err
	}
	cache.store(i, h, out)
	return out, false, nil
}

func totalRows(ts *core.Tableset) int {
	n := 0
	for _, name := range ts.Names() {
		if f, err := ts.Frame(name); err == nil {
			n += f.NumRows()
		}
	}
	return n
}
