package config

// Default configuration values.
const (
	DefaultSourceDir    = "units"
	DefaultModelsDir    = "models"
	DefaultRegistryFile = "sqlmorph.db"
	DefaultOutput       = "auto"
	DefaultWorkers      = 4
)

// ApplyDefaults fills unset fields with defaults.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.SourceDir == "" {
		c.SourceDir = DefaultSourceDir
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.RegistryPath == "" {
		c.RegistryPath = DefaultRegistryFile
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutput
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
}
