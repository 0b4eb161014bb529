package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/internal/engine"
	"github.com/leapstack-labs/datarush/internal/runner"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/spf13/cobra"
)

// TemplateOptions select the template to run and its parameters.
type TemplateOptions struct {
	Template string
	Version  string
	File     string
	Params   []string
}

func (o *TemplateOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Template, "template", "", "Name of a stored template")
	cmd.Flags().StringVar(&o.Version, "version", "", "Version of the stored template")
	cmd.Flags().StringVarP(&o.File, "file", "f", "", "Template file (.json, .yaml or .yml)")
	cmd.Flags().StringArrayVarP(&o.Params, "param", "p", nil, "Parameter value as name=value (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("template", "file")
	cmd.MarkFlagsOneRequired("template", "file")
	cmd.MarkFlagsRequiredTogether("template", "version")
}

// load reads the selected template and parses the overrides.
func (o *TemplateOptions) load(ctx context.Context, cc *CommandContext) (*templates.Template, runner.Source, map[string]string, error) {
	overrides, err := runner.ParseOverrides(o.Params)
	if err != nil {
		return nil, runner.Source{}, nil, err
	}

	if o.File != "" {
		tmpl, err := templates.LoadFile(o.File)
		if err != nil {
			return nil, runner.Source{}, nil, err
		}
		return tmpl, runner.Source{Path: o.File}, overrides, nil
	}

	tmpl, err := cc.Store.Read(ctx, o.Template, o.Version)
	if err != nil {
		return nil, runner.Source{}, nil, err
	}
	return tmpl, runner.Source{TemplateName: o.Template, TemplateVersion: o.Version}, overrides, nil
}

// RunOptions holds options for the run command.
type RunOptions struct {
	TemplateOptions
	ShowTables bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a template",
		Long: `Run every enabled operation of a template in order.

The template is read from the configured template store (--template and
--version) or from a file (--file). Parameters are passed as --param
name=value and converted to their declared types; parameters without a value
use their default. The run and each operation are recorded in the run
history unless state_path is empty.`,
		Example: `  # Run a stored template
  datarush run --template orders --version 3 --param day=2024-03-01

  # Run a template file and print the resulting tables
  datarush run --file flow.yaml --show-tables`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().BoolVar(&opts.ShowTables, "show-tables", false, "Print the resulting tables")

	return cmd
}

// RunOutput is the JSON output for the run command.
type RunOutput struct {
	RunID    string       `json:"run_id,omitempty"`
	Status   string       `json:"status"`
	Error    string       `json:"error,omitempty"`
	Duration string       `json:"duration"`
	Steps    []StepOutput `json:"steps"`
}

// StepOutput describes one step of a run.
type StepOutput struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Summary  string `json:"summary"`
	Status   string `json:"status"`
	Rows     int    `json:"rows"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	tmpl, src, overrides, err := opts.load(ctx, cc)
	if err != nil {
		return err
	}

	r := cc.Renderer
	total := len(tmpl.Operations)
	progress := engine.ObserverFunc(func(ev engine.OperationEvent) {
		if r.Mode() == output.ModeJSON {
			return
		}
		r.Progressf("%s [%d/%d] %s %s\n", statusMark(r, ev.Status), ev.Position+1, total, ev.Summary,
			r.Muted(fmt.Sprintf("(%s)", ev.Duration.Round(time.Millisecond))))
	})

	start := time.Now()
	res, runErr := cc.Runner(runner.WithObserver(progress)).Run(ctx, tmpl, src, overrides)
	if res == nil {
		return runErr
	}
	elapsed := time.Since(start).Round(time.Millisecond)

	if r.Mode() == output.ModeJSON {
		out := RunOutput{RunID: res.RunID, Status: "completed", Duration: elapsed.String(), Steps: stepOutputs(res.Steps)}
		if runErr != nil {
			out.Status, out.Error = "failed", runErr.Error()
		}
		if err := r.JSON(out); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		return runErr
	}
	if res.RunID != "" {
		r.Progressf("Run %s completed in %s\n", res.RunID, elapsed)
	} else {
		r.Progressf("Completed in %s\n", elapsed)
	}
	if opts.ShowTables && res.Tables != nil {
		return r.Tableset(res.Tables, cc.Cfg.PreviewLimit)
	}
	return nil
}

func stepOutputs(events []engine.OperationEvent) []StepOutput {
	steps := make([]StepOutput, 0, len(events))
	for _, ev := range events {
		s := StepOutput{
			Position: ev.Position,
			Name:     ev.Operation.Name(),
			Summary:  ev.Summary,
			Status:   string(ev.Status),
			Rows:     ev.Rows,
			Duration: ev.Duration.Round(time.Millisecond).String(),
		}
		if ev.Err != nil {
			s.Error = ev.Err.Error()
		}
		steps = append(steps, s)
	}
	return steps
}

func statusMark(r *output.Renderer, status engine.OperationStatus) string {
	switch status {
	case engine.StatusSucceeded:
		return r.Success("✓")
	case engine.StatusCached:
		return r.Success("↺")
	case engine.StatusSkipped:
		return r.Muted("-")
	default:
		return r.Fail("✗")
	}
}
