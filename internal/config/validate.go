package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var (
	validOutputs    = []string{"table", "json", "csv", "markdown"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks option values and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	switch c.TemplateStore.Type {
	case StoreFilesystem:
		if c.TemplateStore.Filesystem.Path == "" {
			errs = append(errs, fmt.Errorf("template_store.filesystem.path is required"))
		}
	case StoreSQLite:
		if c.TemplateStore.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("template_store.sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown template_store.type %q (expected %s or %s)",
			c.TemplateStore.Type, StoreFilesystem, StoreSQLite))
	}

	if !slices.Contains(validOutputs, c.Output) {
		errs = append(errs, fmt.Errorf("unknown output %q (expected one of %s)", c.Output, strings.Join(validOutputs, ", ")))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("unknown log_format %q (expected text or json)", c.LogFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.PreviewLimit < 0 {
		errs = append(errs, fmt.Errorf("preview_limit must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLogLevel parses debug, info, warn or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
	return level, nil
}
