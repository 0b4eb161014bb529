// Package cli provides the command-line interface for datarush.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/datarush/internal/cli/commands"
	"github.com/leapstack-labs/datarush/internal/config"
	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/pkg/core"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Option customizes the root command.
type Option func(*rootOptions)

type rootOptions struct {
	extraKinds []core.Kind
}

// WithOperations makes additional operation kinds available to every
// command, alongside the built-ins. A kind with a built-in's name replaces it.
func WithOperations(kinds ...core.Kind) Option {
	return func(o *rootOptions) {
		o.extraKinds = append(o.extraKinds, kinds...)
	}
}

// NewRootCmd creates and returns the root command.
func NewRootCmd(opts ...Option) *cobra.Command {
	var cfgFile string
	var o rootOptions
	for _, opt := range opts {
		opt(&o)
	}
	reg := registry.Default()
	if len(o.extraKinds) > 0 {
		reg = registry.WithBuiltins(o.extraKinds...)
	}

	rootCmd := &cobra.Command{
		Use:   "datarush",
		Short: "datarush - tabular dataflow engine",
		Long: `datarush runs templated pipelines of operations over named in-memory tables.

A template is an ordered list of operations (load a file, filter, join, derive
a column, write to a database, ...) plus typed parameters that operation fields
can reference with {{ parameters.name }}. Templates are stored as immutable
versions and every run is recorded in a local history database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}
			logger.Debug("configuration loaded", "config_file", cfg.ConfigFile, "root", cfg.ProjectRoot)

			ctx := config.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithRegistry(ctx, reg)
			cmd.SetContext(config.WithLogger(ctx, logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./datarush.yaml)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (text|json)")
	flags.StringP("output", "o", "", "Output format (table|json|csv|markdown)")
	flags.String("state", "", "Path to the run history database (empty string disables history)")
	flags.String("store", "", "Template store type (filesystem|sqlite)")
	flags.String("store-path", "", "Root directory of the filesystem template store")

	_ = rootCmd.RegisterFlagCompletionFunc("output", fixedCompletions("table", "json", "csv", "markdown"))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", fixedCompletions("debug", "info", "warn", "error"))
	_ = rootCmd.RegisterFlagCompletionFunc("store", fixedCompletions(config.StoreFilesystem, config.StoreSQLite))

	rootCmd.AddCommand(
		commands.NewVersionCommand(Version),
		commands.NewInitCommand(),
		commands.NewRunCommand(),
		commands.NewPreviewCommand(),
		commands.NewTemplatesCommand(Version),
		commands.NewOperationsCommand(),
		commands.NewRunsCommand(),
		commands.NewDoctorCommand(Version),
		NewCompletionCommand(),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute(opts ...Option) error {
	rootCmd := NewRootCmd(opts...)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newLogger builds the process logger. Logs go to w, keeping stdout for results.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for datarush.

Bash:
  $ source <(datarush completion bash)

Zsh:
  $ datarush completion zsh > "${fpath[1]}/_datarush"

Fish:
  $ datarush completion fish | source

PowerShell:
  PS> datarush completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
