package config

import (
	"fmt"
	"os"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DefinitionsPath == "" {
		return fmt.Errorf("definitions_path is required")
	}

	// Only validate path existence if we're running a command that needs it.
	// This allows help commands to work without a valid project.
	return nil
}

// ValidatePaths checks if required files and directories exist.
func (c *Config) ValidatePaths() error {
	if _, err := os.Stat(c.DefinitionsPath); os.IsNotExist(err) {
		return fmt.Errorf("definitions path does not exist: %s\nHint: Create it or use --definitions to specify a different path", c.DefinitionsPath)
	}
	return nil
}
