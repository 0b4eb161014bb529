package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewTemplatesCommand creates the templates command and its subcommands.
func NewTemplatesCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template", "tpl"},
		Short:   "Manage stored templates",
		Long: `List, inspect and import versioned templates in the configured
template store. A stored version is immutable: importing an existing name and
version fails.`,
	}

	cmd.AddCommand(
		newTemplatesListCommand(),
		newTemplatesVersionsCommand(),
		newTemplatesShowCommand(),
		newTemplatesImportCommand(version),
	)
	return cmd
}

func newTemplatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			names, err := cc.Store.List(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				versions, err := cc.Store.ListVersions(ctx, name)
				if err != nil {
					return err
				}
				latest := ""
				if len(versions) > 0 {
					latest = versions[len(versions)-1]
				}
				rows = append(rows, []string{name, strconv.Itoa(len(versions)), latest})
			}
			return cc.Renderer.Table([]string{"name", "versions", "latest"}, rows)
		},
	}
}

func newTemplatesVersionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <name>",
		Short: "List the versions of a stored template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			versions, err := cc.Store.ListVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(versions))
			for _, v := range versions {
				rows = append(rows, []string{v})
			}
			return cc.Renderer.Table([]string{"version"}, rows)
		},
	}
}

func newTemplatesShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <name> <version>",
		Short: "Print a stored template",
		Args:  cobra.ExactArgs(2),
		Example: `  # Print as YAML, ready to edit and import as a new version
  datarush templates show orders 3 --format yaml > flow.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tmpl, err := cc.Store.Read(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			var data []byte
			switch templates.Format(format) {
			case templates.FormatYAML:
				data, err = yaml.Marshal(tmpl)
			case templates.FormatJSON:
				data, err = templates.Encode(tmpl)
				data = append(data, '\n')
			default:
				return fmt.Errorf("unknown format %q (expected json or yaml)", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", string(templates.FormatJSON), "Output format: json, yaml")
	return cmd
}

func newTemplatesImportCommand(version string) *cobra.Command {
	var name, tmplVersion string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a template file as a new version",
		Long: `Validate a template file and store it under a name and version.

Every operation must be a registered kind and every parameter must declare a
valid type. The template's datarush_version is set to this binary's version
when the file does not carry one.`,
		Example: `  datarush templates import flows/orders.yaml --name orders --version 1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tmpl, err := templates.LoadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := templates.ToDataflow(tmpl, cc.Registry); err != nil {
				return fmt.Errorf("invalid template %s: %w", args[0], err)
			}
			if tmpl.DatarushVersion == "" {
				tmpl.DatarushVersion = version
			}

			if err := cc.Store.Write(cmd.Context(), tmpl, name, tmplVersion); err != nil {
				return err
			}
			cc.Logger.Info("template imported", "name", name, "version", tmplVersion, "file", args[0])
			cc.Renderer.Printf("%s Stored %s version %s\n", cc.Renderer.Success("✓"), name, tmplVersion)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Template name")
	cmd.Flags().StringVar(&tmplVersion, "version", "", "Template version")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
