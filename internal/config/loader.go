package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// flagKeys maps flag names whose config key differs from the
// kebab-to-snake conversion.
var flagKeys = map[string]string{
	"state":      "state_path",
	"store":      "template_store.type",
	"store-path": "template_store.filesystem.path",
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > .env file > config file > defaults.
//
// cfgFile is an explicit config path; when empty datarush.yaml or
// datarush.yml is looked up in the working directory. Relative paths in the
// result are resolved against the config file's directory.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigFile(root)
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// .env values never override variables already set in the environment.
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = root
	cfg.ConfigFile = cfgFile
	cfg.TemplateStore.Type = strings.ToLower(cfg.TemplateStore.Type)
	cfg.TemplateStore.Filesystem.Path = resolvePath(cfg.TemplateStore.Filesystem.Path, root)
	cfg.TemplateStore.SQLite.Path = resolvePath(cfg.TemplateStore.SQLite.Path, root)
	cfg.StatePath = resolvePath(cfg.StatePath, root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps DATARUSH_TEMPLATE_STORE__TYPE to template_store.type.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func findConfigFile(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// resolvePath resolves path against baseDir unless it is empty, absolute
// or an in-memory database.
func resolvePath(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
