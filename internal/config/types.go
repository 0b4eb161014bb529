// Package config loads datarush configuration from defaults, a datarush.yaml
// file, a .env file, DATARUSH_ environment variables and command-line flags.
package config

// Template store backends.
const (
	StoreFilesystem = "filesystem"
	StoreSQLite     = "sqlite"
)

// Config holds all configuration options.
type Config struct {
	TemplateStore TemplateStoreConfig `koanf:"template_store"`
	StatePath     string              `koanf:"state_path"` // run history database, empty disables
	LogLevel      string              `koanf:"log_level"`
	LogFormat     string              `koanf:"log_format"`
	Output        string              `koanf:"output"`
	PreviewLimit  int                 `koanf:"preview_limit"`

	// Set by the loader.
	ProjectRoot string `koanf:"-"`
	ConfigFile  string `koanf:"-"`
}

// TemplateStoreConfig selects and configures the template store.
type TemplateStoreConfig struct {
	Type       string                `koanf:"type"`
	Filesystem FilesystemStoreConfig `koanf:"filesystem"`
	SQLite     SQLiteStoreConfig     `koanf:"sqlite"`
}

// FilesystemStoreConfig configures the filesystem template store.
type FilesystemStoreConfig struct {
	Path string `koanf:"path"`
}

// SQLiteStoreConfig configures the SQLite template store.
type SQLiteStoreConfig struct {
	Path string `koanf:"path"`
}
