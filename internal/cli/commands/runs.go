package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/internal/state"
	"github.com/spf13/cobra"
)

var errNoHistory = errors.New("run history is disabled (state_path is empty)")

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	cmd.AddCommand(newRunsListCommand(), newRunsShowCommand())
	return cmd
}

// RunRecord is the JSON form of a recorded run.
type RunRecord struct {
	ID          string            `json:"id"`
	Template    string            `json:"template,omitempty"`
	Version     string            `json:"version,omitempty"`
	Source      string            `json:"source,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Steps       []StepOutput      `json:"steps,omitempty"`
}

func runRecord(run *state.Run) RunRecord {
	return RunRecord{
		ID:          run.ID,
		Template:    run.TemplateName,
		Version:     run.TemplateVersion,
		Source:      run.Source,
		Parameters:  run.Parameters,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

func newRunsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if cc.History == nil {
				return errNoHistory
			}

			runs, err := cc.History.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if cc.Renderer.Mode() == output.ModeJSON {
				records := make([]RunRecord, 0, len(runs))
				for _, run := range runs {
					records = append(records, runRecord(run))
				}
				return cc.Renderer.JSON(records)
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					runSource(run),
					string(run.Status),
					run.StartedAt.Local().Format(time.DateTime),
					runDuration(run),
				})
			}
			return cc.Renderer.Table([]string{"id", "source", "status", "started", "duration"}, rows)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if cc.History == nil {
				return errNoHistory
			}

			ctx := cmd.Context()
			run, err := cc.History.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			opRuns, err := cc.History.GetOperationRuns(ctx, run.ID)
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.Mode() == output.ModeJSON {
				rec := runRecord(run)
				for _, op := range opRuns {
					rec.Steps = append(rec.Steps, StepOutput{
						Position: op.Position,
						Name:     op.Name,
						Summary:  op.Summary,
						Status:   op.Status,
						Rows:     op.Rows,
						Duration: op.Duration.String(),
						Error:    op.Error,
					})
				}
				return r.JSON(rec)
			}

			pairs := [][2]string{
				{"id", run.ID},
				{"source", runSource(run)},
				{"status", string(run.Status)},
				{"started", run.StartedAt.Local().Format(time.DateTime)},
				{"duration", runDuration(run)},
			}
			if len(run.Parameters) > 0 {
				pairs = append(pairs, [2]string{"parameters", formatParameters(run.Parameters)})
			}
			if run.Error != "" {
				pairs = append(pairs, [2]string{"error", run.Error})
			}
			if err := r.KeyValues(pairs); err != nil {
				return err
			}
			r.Println("")

			rows := make([][]string, 0, len(opRuns))
			for _, op := range opRuns {
				rows = append(rows, []string{
					strconv.Itoa(op.Position + 1),
					op.Summary,
					op.Status,
					strconv.Itoa(op.Rows),
					op.Duration.String(),
					op.Error,
				})
			}
			return r.Table([]string{"#", "operation", "status", "rows", "duration", "error"}, rows)
		},
	}
}

func runSource(run *state.Run) string {
	if run.TemplateName != "" {
		return fmt.Sprintf("%s@%s", run.TemplateName, run.TemplateVersion)
	}
	return run.Source
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func formatParameters(params map[string]string) string {
	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, ", ")
}
