package commands

import (
	"fmt"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/spf13/cobra"
)

// NewOperationsCommand creates the operations command.
func NewOperationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "Inspect available operation kinds",
	}
	cmd.AddCommand(newOperationsListCommand(), newOperationsShowCommand())
	return cmd
}

func newOperationsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered operation kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutStores(cmd)
			kinds := cc.Registry.List()
			rows := make([][]string, 0, len(kinds))
			for _, k := range kinds {
				rows = append(rows, []string{k.Name, k.Title, string(k.Category), k.Description})
			}
			return cc.Renderer.Table([]string{"name", "title", "category", "description"}, rows)
		},
	}
}

func newOperationsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the parameter schema of an operation kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutStores(cmd)
			kind, err := cc.Registry.ByName(args[0])
			if err != nil {
				return err
			}

			r := cc.Renderer
			if r.Mode() == output.ModeJSON {
				return r.JSON(kindOutput(kind))
			}
			r.Header(kind.Title)
			if kind.Description != "" {
				r.Println(kind.Description)
				r.Println("")
			}
			return r.Table([]string{"field", "type", "required", "default", "description"}, schemaRows(kind.Schema))
		},
	}
}

func schemaRows(s *core.Schema) [][]string {
	fields := s.Fields()
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		def := ""
		if f.HasDefault {
			def = fmt.Sprint(f.Default)
		}
		rows = append(rows, []string{f.Name, f.Type.String(), fmt.Sprint(f.Required()), def, f.Description})
	}
	return rows
}

// KindOutput is the JSON output for operations show.
type KindOutput struct {
	Name        string        `json:"name"`
	Title       string        `json:"title"`
	Category    string        `json:"category"`
	Description string        `json:"description,omitempty"`
	Fields      []FieldOutput `json:"fields"`
}

// FieldOutput describes one schema field.
type FieldOutput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

func kindOutput(k core.Kind) KindOutput {
	out := KindOutput{Name: k.Name, Title: k.Title, Category: string(k.Category), Description: k.Description}
	for _, f := range k.Schema.Fields() {
		out.Fields = append(out.Fields, FieldOutput{
			Name:        f.Name,
			Type:        f.Type.String(),
			Required:    f.Required(),
			Default:     f.Default,
			Description: f.Description,
		})
	}
	return out
}
