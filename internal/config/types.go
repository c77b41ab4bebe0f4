// Package config loads project configuration for sqlmorph. It is
// decoupled from CLI concerns so the engine and tests can load
// configuration directly.
package config

// CatalogConfig points at the column-type catalog used by the
// translator's encoded-date rule.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// TranslateConfig tunes the SQL translator.
type TranslateConfig struct {
	// AllowFunctions extends the builtin function allow-list.
	AllowFunctions []string `koanf:"allow_functions"`
	// Renames adds project-specific function renames.
	Renames map[string]string `koanf:"renames"`
}

// Config holds all sqlmorph configuration options.
type Config struct {
	ProjectRoot  string           `koanf:"-"`
	SourceDir    string           `koanf:"source_dir"`
	ModelsDir    string           `koanf:"models_dir"`
	RegistryPath string           `koanf:"registry_path"`
	Catalog      *CatalogConfig   `koanf:"catalog"`
	Translate    *TranslateConfig `koanf:"translate"`
	// Workers bounds extraction and translation parallelism.
	Workers int `koanf:"workers"`
	// Preserve keeps the original legacy SQL as a comment block in
	// each generated model next to its translation.
	Preserve     bool   `koanf:"preserve"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
}

// CatalogPath returns the configured catalog path, or "" when no
// catalog is configured.
func (c *Config) CatalogPath() string {
	if c.Catalog == nil {
		return ""
	}
	return c.Catalog.Path
}
