package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/datarush/internal/cli/output"
	"github.com/leapstack-labs/datarush/internal/config"
	"github.com/leapstack-labs/datarush/internal/registry"
	"github.com/leapstack-labs/datarush/internal/runner"
	"github.com/leapstack-labs/datarush/internal/state"
	"github.com/leapstack-labs/datarush/internal/templates"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Registry *registry.Registry
	Store    templates.Store
	History  *state.SQLiteStore // nil when run history is disabled
}

// NewCommandContext opens the configured template store and history.
// The returned cleanup function must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStores(cmd)

	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	store, closeStore, err := openTemplateStore(cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}
	cc.Store = store

	if cc.Cfg.StatePath != "" {
		history, err := openSQLite(cc.Cfg.StatePath, cc.Logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open run history: %w", err)
		}
		closers = append(closers, history.Close)
		cc.History = history
	}

	return cc, cleanup, nil
}

// NewCommandContextWithoutStores creates a CommandContext for commands that
// need neither templates nor history.
func NewCommandContextWithoutStores(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd)
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output)),
		Registry: RegistryFrom(cmd.Context()),
	}
}

type registryKey struct{}

// WithRegistry stores the operation registry commands resolve kinds from.
func WithRegistry(ctx context.Context, reg *registry.Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, reg)
}

// RegistryFrom returns the registry stored in ctx, or the default registry.
func RegistryFrom(ctx context.Context) *registry.Registry {
	if ctx != nil {
		if reg, ok := ctx.Value(registryKey{}).(*registry.Registry); ok {
			return reg
		}
	}
	return registry.Default()
}

// Runner builds a runner over the context's stores.
func (cc *CommandContext) Runner(opts ...runner.Option) *runner.Runner {
	base := []runner.Option{runner.WithRegistry(cc.Registry), runner.WithLogger(cc.Logger)}
	if cc.History != nil {
		base = append(base, runner.WithHistory(cc.History))
	}
	return runner.New(cc.Store, append(base, opts...)...)
}

// getConfig returns the config loaded by the root command, or loads the
// defaults when the command runs on its own (as in tests).
func getConfig(cmd *cobra.Command) *config.Config {
	if cmd.Context() != nil {
		if cfg, ok := config.FromContext(cmd.Context()); ok {
			return cfg
		}
	}
	cfg, err := config.Load("", nil)
	if err != nil {
		return &config.Config{
			TemplateStore: config.TemplateStoreConfig{
				Type:       config.DefaultStoreType,
				Filesystem: config.FilesystemStoreConfig{Path: config.DefaultFilesystemPath},
			},
			StatePath:    config.DefaultStatePath,
			LogLevel:     config.DefaultLogLevel,
			LogFormat:    config.DefaultLogFormat,
			Output:       config.DefaultOutput,
			PreviewLimit: config.DefaultPreviewLimit,
		}
	}
	return cfg
}

func openTemplateStore(cfg *config.Config, logger *slog.Logger) (templates.Store, func() error, error) {
	switch cfg.TemplateStore.Type {
	case config.StoreSQLite:
		store, err := openSQLite(cfg.TemplateStore.SQLite.Path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open template store: %w", err)
		}
		return store, store.Close, nil
	default:
		return templates.NewFilesystemStore(cfg.TemplateStore.Filesystem.Path), nil, nil
	}
}

func openSQLite(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	return store, nil
}
