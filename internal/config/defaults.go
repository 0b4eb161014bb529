package config

// Default configuration values.
const (
	DefaultStoreType      = StoreFilesystem
	DefaultFilesystemPath = ".datarush"
	DefaultSQLitePath     = ".datarush/templates.db"
	DefaultStatePath      = ".datarush/state.db"
	DefaultLogLevel       = "warn"
	DefaultLogFormat      = "text"
	DefaultOutput         = "table"
	DefaultPreviewLimit   = 20
)

// ConfigFileNames are searched in order in the project root.
var ConfigFileNames = []string{"datarush.yaml", "datarush.yml"}

// EnvPrefix prefixes environment variables; "__" separates nested keys,
// e.g. DATARUSH_TEMPLATE_STORE__TYPE.
const EnvPrefix = "DATARUSH_"

func defaults() map[string]any {
	return map[string]any{
		"template_store.type":            DefaultStoreType,
		"template_store.filesystem.path": DefaultFilesystemPath,
		"template_store.sqlite.path":     DefaultSQLitePath,
		"state_path":                     DefaultStatePath,
		"log_level":                      DefaultLogLevel,
		"log_format":                     DefaultLogFormat,
		"output":                         DefaultOutput,
		"preview_limit":                  DefaultPreviewLimit,
	}
}
