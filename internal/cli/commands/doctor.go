package commands

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/internal/engine"
	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/spf13/cobra"
)

// Health check statuses.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

const doctorConcurrency = 4

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the project configuration and stored templates",
		Long: `Check that the configuration loads, the template store and run history
open, and every stored template version still decodes and validates against
the registered operation kinds.

Operations whose fields are templated are validated with the parameter
defaults; when a required parameter has no default they are skipped.
The command fails when any check reports an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, version)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile   string        `json:"config_file,omitempty"`
	StoreType    string        `json:"store_type"`
	Templates    int           `json:"templates"`
	Versions     int           `json:"versions"`
	HealthChecks []HealthCheck `json:"health_checks"`
	ErrorCount   int           `json:"error_count"`
	WarningCount int           `json:"warning_count"`
}

// HealthCheck is the result of a single check.
type HealthCheck struct {
	Group   string   `json:"group"`
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, version string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := &DoctorOutput{ConfigFile: cc.Cfg.ConfigFile, StoreType: cc.Cfg.TemplateStore.Type}
	out.HealthChecks = append(out.HealthChecks, environmentChecks(cc)...)

	checks, err := templateChecks(cmd.Context(), cc.Store, cc.Registry, version, out)
	if err != nil {
		out.HealthChecks = append(out.HealthChecks, HealthCheck{
			Group: "templates", Name: "template store", Status: checkError, Details: []string{err.Error()},
		})
	}
	out.HealthChecks = append(out.HealthChecks, checks...)

	for _, c := range out.HealthChecks {
		switch c.Status {
		case checkError:
			out.ErrorCount++
		case checkWarn:
			out.WarningCount++
		}
	}

	r := cc.Renderer
	switch r.Mode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}

	if out.ErrorCount > 0 {
		return fmt.Errorf("doctor found %d error(s)", out.ErrorCount)
	}
	return nil
}

func environmentChecks(cc *CommandContext) []HealthCheck {
	cfgCheck := HealthCheck{Group: "environment", Name: "configuration", Status: checkPass}
	if cc.Cfg.ConfigFile == "" {
		cfgCheck.Status = checkWarn
		cfgCheck.Details = []string{"no datarush.yaml found; using defaults"}
	} else {
		cfgCheck.Details = []string{cc.Cfg.ConfigFile}
	}

	historyCheck := HealthCheck{Group: "environment", Name: "run history", Status: checkPass}
	if cc.History == nil {
		historyCheck.Status = checkWarn
		historyCheck.Details = []string{"disabled (state_path is empty)"}
	} else if v, err := cc.History.MigrationVersion(); err != nil {
		historyCheck.Status = checkError
		historyCheck.Details = []string{err.Error()}
	} else {
		historyCheck.Details = []string{fmt.Sprintf("%s (schema version %d)", cc.History.Path(), v)}
	}

	return []HealthCheck{cfgCheck, historyCheck}
}

// templateChecks validates every stored template version, a few at a time.
func templateChecks(ctx context.Context, store templates.Store, reg *registry.Registry, version string, out *DoctorOutput) ([]HealthCheck, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out.Templates = len(names)

	type ref struct{ name, version string }
	var refs []ref
	for _, name := range names {
		versions, err := store.ListVersions(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			refs = append(refs, ref{name, v})
		}
	}
	out.Versions = len(refs)

	checks := make([]HealthCheck, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(doctorConcurrency)
	for i, r := range refs {
		g.Go(func() error {
			check := HealthCheck{Group: "templates", Name: r.name + "@" + r.version}
			tmpl, err := store.Read(gctx, r.name, r.version)
			if err != nil {
				check.Status, check.Details = checkError, []string{err.Error()}
			} else {
				check.Status, check.Details = validateTemplate(tmpl, reg, version)
			}
			checks[i] = check
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

func validateTemplate(tmpl *templates.Template, reg *registry.Registry, version string) (string, []string) {
	flow, err := templates.ToDataflow(tmpl, reg)
	if err != nil {
		return checkError, []string{err.Error()}
	}

	status := checkPass
	var details []string

	values, err := engine.ParseParameterValues(flow.Parameters(), nil)
	renderable := err == nil
	if renderable {
		if err := flow.SetParameterValues(values); err != nil {
			return checkError, []string{err.Error()}
		}
	}

	skipped := 0
	for i, op := range flow.Operations() {
		if !op.Enabled() {
			continue
		}
		if op.AdvancedMode() && !renderable {
			skipped++
			continue
		}
		if _, err := op.Params(); err != nil {
			status = checkError
			details = append(details, fmt.Sprintf("operation #%d (%s): %v", i+1, op.Name(), err))
		}
	}

	if skipped > 0 {
		if status == checkPass {
			status = checkWarn
		}
		details = append(details, fmt.Sprintf("%d templated operation(s) not validated: required parameters have no default", skipped))
	}
	if tmpl.DatarushVersion != "" && tmpl.DatarushVersion != version {
		if status == checkPass {
			status = checkWarn
		}
		details = append(details, fmt.Sprintf("saved with datarush %s, running %s", tmpl.DatarushVersion, version))
	}
	return status, details
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header.Render("datarush Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   Store: %s | Templates: %d | Versions: %d\n", out.StoreType, out.Templates, out.Versions)
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Header.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := r.Success("✓")
		switch check.Status {
		case checkWarn:
			icon = r.Warn("!")
		case checkError:
			icon = r.Fail("✗")
		}
		r.Printf("   %s %s\n", icon, check.Name)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	summary := fmt.Sprintf("%d error(s), %d warning(s)", out.ErrorCount, out.WarningCount)
	switch {
	case out.ErrorCount > 0:
		summary = r.Fail(summary)
	case out.WarningCount > 0:
		summary = r.Warn(summary)
	default:
		summary = r.Success(summary)
	}
	r.Printf("   %s\n", summary)
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# datarush Health Report")
	r.Println("")
	r.Printf("- **Store**: %s\n", out.StoreType)
	r.Printf("- **Templates**: %d\n", out.Templates)
	r.Printf("- **Versions**: %d\n", out.Versions)
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("## " + titleCaser.String(currentGroup))
			r.Println("")
		}
		r.Printf("- **[%s]** %s\n", strings.ToUpper(check.Status), check.Name)
		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")
	r.Printf("**%d error(s), %d warning(s)**\n", out.ErrorCount, out.WarningCount)
}
