// Package config provides configuration management for the Quarry CLI.
//
// This package extends the shared configuration types from pkg/core with
// CLI-specific fields and functionality. The shared types (IngestSettings,
// ServeSettings, EnvConfig) are defined in pkg/core and re-exported here
// via type aliases for convenience.
package config

import (
	sharedcfg "github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/pkg/core"
)

// IngestSettings is an alias for the shared ingest configuration.
// This allows CLI code to use config.IngestSettings without importing pkg/core.
type IngestSettings = core.IngestSettings

// ServeSettings is an alias for the shared serve configuration.
// This allows CLI code to use config.ServeSettings without importing pkg/core.
type ServeSettings = core.ServeSettings

// EnvConfig is an alias for the shared per-environment overrides.
// This allows CLI code to use config.EnvConfig without importing pkg/core.
type EnvConfig = core.EnvConfig

// Config holds all CLI configuration options.
type Config struct {
	DefinitionsPath string               `koanf:"definitions_path"`
	MacrosDir       string               `koanf:"macros_dir"`
	Dialect         string               `koanf:"dialect"`
	StatePath       string               `koanf:"state_path"`
	Environment     string               `koanf:"environment"`
	Verbose         bool                 `koanf:"verbose"`
	OutputFormat    string               `koanf:"output"`
	Vars            map[string]any       `koanf:"vars"`
	Ingest          *IngestSettings      `koanf:"ingest"`
	Serve           *ServeSettings       `koanf:"serve"`
	Environments    map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the resolved project root directory. It is derived
	// during loading, never read from the config file.
	ProjectRoot string `koanf:"-"`
}

// GetServeSettings returns the serve config with defaults applied for any
// unset values.
func (c *Config) GetServeSettings() *ServeSettings {
	if c.Serve == nil {
		return &ServeSettings{Port: sharedcfg.DefaultServePort}
	}
	s := c.Serve
	if s.Port == 0 {
		s.Port = sharedcfg.DefaultServePort
	}
	return s
}

// ProjectConfig converts the CLI config to the shared project form used
// by the definition service.
func (c *Config) ProjectConfig() *core.ProjectConfig {
	return &core.ProjectConfig{
		DefinitionsPath: c.DefinitionsPath,
		MacrosDir:       c.MacrosDir,
		Dialect:         c.Dialect,
		Vars:            c.Vars,
		Ingest:          c.Ingest,
		Serve:           c.Serve,
	}
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultDefinitionsPath = sharedcfg.DefaultDefinitionsPath
	DefaultMacrosDir       = sharedcfg.DefaultMacrosDir
	DefaultDialect         = sharedcfg.DefaultDialect
	DefaultStateFile       = ".quarry/state.db"
	DefaultEnv             = "dev"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
