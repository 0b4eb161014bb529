package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/datarush/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new datarush project",
		Long: `Initialize a datarush project with a configuration file and an empty
template store.

This creates:
  - datarush.yaml configuration file
  - .datarush/ directory holding stored templates and run history
  - .gitignore excluding the run history

Use --example to also create sample data and a template file that loads,
cleans, derives and sorts it.`,
		Example: `  # Initialize in current directory
  datarush init

  # Initialize a new directory with the example flow
  datarush init my-project --example

  # Overwrite an existing configuration
  datarush init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, example, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Add sample data and an example template file")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, example, force bool) error {
	r := NewCommandContextWithoutStores(cmd).Renderer

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.ConfigFileNames[0])
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileNames[0])
	}

	layout := "minimal"
	if example {
		layout = "example"
	}
	files, err := copyScaffold(layout, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, config.DefaultFilesystemPath, "templates"), 0o750); err != nil {
		return fmt.Errorf("failed to create template store: %w", err)
	}

	for _, f := range files {
		r.Printf("%s %s\n", r.Success("✓"), f)
	}
	r.Println("")
	r.Println(r.Success("datarush project initialized!"))
	r.Println("")
	r.Println("Next steps:")
	if example {
		r.Println("  datarush run --file flows/orders.yaml --show-tables")
		r.Println("  datarush templates import flows/orders.yaml --name orders --version 1")
	} else {
		r.Println("  datarush operations list")
		r.Println("  datarush templates import <file> --name <name> --version <version>")
	}
	return nil
}
