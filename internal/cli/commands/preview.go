package commands

import (
	"fmt"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/internal/runner"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/spf13/cobra"
)

// PreviewOptions holds options for the preview command.
type PreviewOptions struct {
	TemplateOptions
	Step  int
	Limit int
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	opts := &PreviewOptions{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the tables after each step of a template",
		Long: `Run a template without recording it and print the tables as they are
after each step. Disabled steps and steps that did not run because an earlier
step failed are listed without tables; the failure is reported at the end.`,
		Example: `  # Inspect every step of a template file
  datarush preview --file flow.yaml

  # Only the state after the third step, 5 rows per table
  datarush preview --template orders --version 3 --step 3 --limit 5`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(cmd, opts)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().IntVar(&opts.Step, "step", 0, "Only show the state after this step (1-based)")
	cmd.Flags().IntVar(&opts.Limit, "limit", -1, "Rows shown per table (default from preview_limit, 0 for all)")

	return cmd
}

// PreviewStep is the JSON output for one previewed step.
type PreviewStep struct {
	Position int                     `json:"position"`
	Name     string                  `json:"name"`
	Summary  string                  `json:"summary"`
	Enabled  bool                    `json:"enabled"`
	Tables   map[string]PreviewTable `json:"tables,omitempty"`
}

// PreviewTable is the JSON output for one table of a previewed step.
type PreviewTable struct {
	Rows    int              `json:"rows"`
	Records []map[string]any `json:"records"`
}

func runPreview(cmd *cobra.Command, opts *PreviewOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	tmpl, _, overrides, err := opts.load(ctx, cc)
	if err != nil {
		return err
	}
	if opts.Step < 0 || opts.Step > len(tmpl.Operations) {
		return fmt.Errorf("step %d out of range (template has %d operations)", opts.Step, len(tmpl.Operations))
	}

	limit := opts.Limit
	if limit < 0 {
		limit = cc.Cfg.PreviewLimit
	}

	previews, runErr := cc.Runner().Preview(ctx, tmpl, overrides)
	if previews == nil {
		return runErr
	}
	if opts.Step > 0 {
		previews = previews[opts.Step-1 : opts.Step]
	}

	r := cc.Renderer
	if r.Mode() == output.ModeJSON {
		steps := make([]PreviewStep, 0, len(previews))
		for _, p := range previews {
			steps = append(steps, previewStep(p, limit))
		}
		if err := r.JSON(steps); err != nil {
			return err
		}
		return runErr
	}

	for _, p := range previews {
		title := fmt.Sprintf("[%d] %s", p.Position+1, p.Operation.Summary())
		switch {
		case !p.Operation.Enabled():
			r.Println(r.Muted(title + " (disabled)"))
		case p.Tables == nil:
			r.Println(r.Muted(title + " (not run)"))
		default:
			r.Header(title)
			if err := r.Tableset(p.Tables, limit); err != nil {
				return err
			}
		}
		r.Println("")
	}
	return runErr
}

func previewStep(p runner.StepPreview, limit int) PreviewStep {
	step := PreviewStep{
		Position: p.Position,
		Name:     p.Operation.Name(),
		Summary:  p.Operation.Summary(),
		Enabled:  p.Operation.Enabled(),
	}
	if p.Tables == nil {
		return step
	}
	step.Tables = make(map[string]PreviewTable, p.Tables.Len())
	for _, name := range p.Tables.Names() {
		f, err := p.Tables.Frame(name)
		if err != nil {
			continue
		}
		step.Tables[name] = previewTable(f, limit)
	}
	return step
}

func previewTable(f *core.Frame, limit int) PreviewTable {
	n := f.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	records := make([]map[string]any, n)
	for i := range n {
		records[i] = f.RowMap(i)
	}
	return PreviewTable{Rows: f.NumRows(), Records: records}
}
