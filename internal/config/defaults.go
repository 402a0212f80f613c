package config

import (
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

// Default configuration values.
const (
	DefaultDefinitionsPath = "metrics"
	DefaultMacrosDir       = "macros"

	// DefaultServePort is the port the definition service listens on.
	DefaultServePort = 8787

	// DefaultDialect is the dialect used when the project does not name one.
	DefaultDialect = dialect.DefaultName
)

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *core.ProjectConfig) {
	if c == nil {
		return
	}
	if c.DefinitionsPath == "" {
		c.DefinitionsPath = DefaultDefinitionsPath
	}
	if c.MacrosDir == "" {
		c.MacrosDir = DefaultMacrosDir
	}
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
}

// ApplyServeDefaults applies default values to ServeSettings.
func ApplyServeDefaults(s *core.ServeSettings) {
	if s == nil {
		return
	}
	if s.Port == 0 {
		s.Port = DefaultServePort
	}
}
