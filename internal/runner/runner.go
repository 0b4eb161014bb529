// Package runner executes stored or file-based templates with textual
// parameter overrides and records each run in the history store.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/datarush/internal/engine"
	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/internal/state"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/leapstack-labs/datarush/pkg/core"
)

// History records runs. *state.SQLiteStore implements it.
type History interface {
	CreateRun(ctx context.Context, run *state.Run) (*state.Run, error)
	CompleteRun(ctx context.Context, id string, status state.RunStatus, errMsg string) error
	RecordOperationRun(ctx context.Context, opRun *state.OperationRun) error
}

// Runner loads templates and runs them.
type Runner struct {
	store    templates.Store
	history  History
	registry *registry.Registry
	observer engine.Observer
	logger   *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records every run in h.
func WithHistory(h History) Option {
	return func(r *Runner) { r.history = h }
}

// WithRegistry sets the registry operations are resolved from.
func WithRegistry(reg *registry.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// WithObserver adds an observer that sees every step, e.g. for progress output.
func WithObserver(o engine.Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the logger passed down to dataflows.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a runner reading stored templates from store, which may be
// nil when only files are run.
func New(store templates.Store, opts ...Option) *Runner {
	r := &Runner{store: store, registry: registry.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Result is the outcome of a run.
type Result struct {
	RunID  string // empty without history
	Tables *core.Tableset
	Steps  []engine.OperationEvent
}

// Source identifies what is being run, for the history.
type Source struct {
	TemplateName    string
	TemplateVersion string
	Path            string
}

// RunTemplate runs a stored template version.
func (r *Runner) RunTemplate(ctx context.Context, name, version string, overrides map[string]string) (*Result, error) {
	tmpl, err := r.LoadTemplate(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, tmpl, Source{TemplateName: name, TemplateVersion: version}, overrides)
}

// RunFile runs a template file.
func (r *Runner) RunFile(ctx context.Context, path string, overrides map[string]string) (*Result, error) {
	tmpl, err := templates.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, tmpl, Source{Path: path}, overrides)
}

// LoadTemplate reads a stored template.
func (r *Runner) LoadTemplate(ctx context.Context, name, version string) (*templates.Template, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no template store configured")
	}
	return r.store.Read(ctx, name, version)
}

// Run executes tmpl. Parameter errors fail before any run is recorded.
func (r *Runner) Run(ctx context.Context, tmpl *templates.Template, src Source, overrides map[string]string) (*Result, error) {
	flow, err := r.prepare(tmpl, overrides)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	rec := r.startRecording(ctx, src, overrides)
	result.RunID = rec.runID

	flow.SetObserver(engine.ObserverFunc(func(ev engine.OperationEvent) {
		result.Steps = append(result.Steps, ev)
		rec.OperationFinished(ev)
		if r.observer != nil {
			r.observer.OperationFinished(ev)
		}
	}))

	ts, runErr := flow.Run(ctx)
	result.Tables = ts
	rec.finish(runErr)
	return result, runErr
}

// Preview runs tmpl through a caching session and returns the tableset after
// each step. Disabled steps and steps at or after a failure have nil Tables;
// the run error is returned alongside the previews.
func (r *Runner) Preview(ctx context.Context, tmpl *templates.Template, overrides map[string]string) ([]StepPreview, error) {
	flow, err := r.prepare(tmpl, overrides)
	if err != nil {
		return nil, err
	}
	if r.observer != nil {
		flow.SetObserver(r.observer)
	}

	session := engine.NewSession(flow)
	_, runErr := session.Run(ctx)

	var previews []StepPreview
	err = session.View(func(d *engine.Dataflow) {
		for i, op := range d.Operations() {
			previews = append(previews, StepPreview{Position: i, Operation: op})
		}
	})
	if err != nil {
		return nil, err
	}
	for i := range previews {
		ts, ok, err := session.SnapshotAfter(i)
		if err != nil {
			return nil, err
		}
		if ok {
			previews[i].Tables = ts
		}
	}
	return previews, runErr
}

// StepPreview is the state after one step.
type StepPreview struct {
	Position  int
	Operation *engine.Operation
	Tables    *core.Tableset
}

func (r *Runner) prepare(tmpl *templates.Template, overrides map[string]string) (*engine.Dataflow, error) {
	flow, err := templates.ToDataflow(tmpl, r.registry, engine.WithLogger(r.logger))
	if err != nil {
		return nil, err
	}
	values, err := engine.ParseParameterValues(flow.Parameters(), overrides)
	if err != nil {
		return nil, err
	}
	if err := flow.SetParameterValues(values); err != nil {
		return nil, err
	}
	return flow, nil
}

// recorder writes history records. History failures are logged and never
// fail the run; records are written even after the run context is cancelled.
type recorder struct {
	ctx     context.Context
	history History
	logger  *slog.Logger
	runID   string
}

func (r *Runner) startRecording(ctx context.Context, src Source, overrides map[string]string) *recorder {
	rec := &recorder{ctx: context.WithoutCancel(ctx), history: r.history, logger: r.logger}
	if r.history == nil {
		return rec
	}

	run, err := r.history.CreateRun(ctx, &state.Run{
		TemplateName:    src.TemplateName,
		TemplateVersion: src.TemplateVersion,
		Source:          src.Path,
		Parameters:      overrides,
	})
	if err != nil {
		r.logger.Warn("failed to record run start", "error", err)
		return rec
	}
	rec.runID = run.ID
	return rec
}

func (rec *recorder) OperationFinished(ev engine.OperationEvent) {
	if rec.runID == "" {
		return
	}
	opRun := &state.OperationRun{
		RunID:    rec.runID,
		Position: ev.Position,
		Name:     ev.Operation.Name(),
		Summary:  ev.Summary,
		Status:   string(ev.Status),
		Rows:     ev.Rows,
		Duration: ev.Duration,
	}
	if ev.Err != nil {
		opRun.Error = ev.Err.Error()
	}
	if err := rec.history.RecordOperationRun(rec.ctx, opRun); err != nil {
		rec.logger.Warn("failed to record operation run", "run_id", rec.runID, "position", ev.Position, "error", err)
	}
}

func (rec *recorder) finish(runErr error) {
	if rec.runID == "" {
		return
	}
	status, msg := state.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = state.RunStatusFailed, runErr.Error()
	}
	if err := rec.history.CompleteRun(rec.ctx, rec.runID, status, msg); err != nil {
		rec.logger.Warn("failed to record run completion", "run_id", rec.runID, "error", err)
	}
}

// ParseOverrides splits "name=value" pairs. Later pairs win.
func ParseOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q (expected name=value)", p)
		}
		out[name] = value
	}
	return out, nil
}
