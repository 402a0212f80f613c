package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/quarrylabs/quarry/internal/cli/config"
	"github.com/quarrylabs/quarry/internal/cli/output"
	intconfig "github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// The engine is constructed but not loaded; commands call Engine.Load with
// the load options they need. Returns the context and a cleanup function
// that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	return NewCommandContextAt(cmd, "")
}

// NewCommandContextAt is NewCommandContext with the definitions path
// overridden. Commands that accept a definitions file as a positional
// argument use this; the shared config is copied before the override so
// the loaded config is never mutated.
func NewCommandContextAt(cmd *cobra.Command, definitionsPath string) (*CommandContext, func(), error) {
	cfg := getConfig()
	if definitionsPath != "" {
		copied := *cfg
		copied.DefinitionsPath = definitionsPath
		cfg = &copied
	}
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need definitions or state access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	definitionsPath := getEnvOrDefault("QUARRY_DEFINITIONS_PATH", intconfig.DefaultDefinitionsPath)
	macrosDir := getEnvOrDefault("QUARRY_MACROS_DIR", intconfig.DefaultMacrosDir)
	dialectName := getEnvOrDefault("QUARRY_DIALECT", config.DefaultDialect)
	statePath := getEnvOrDefault("QUARRY_STATE_PATH", config.DefaultStateFile)
	environment := getEnvOrDefault("QUARRY_ENVIRONMENT", config.DefaultEnv)
	verbose := os.Getenv("QUARRY_VERBOSE") == "true"
	outputFormat := os.Getenv("QUARRY_OUTPUT")

	return &config.Config{
		DefinitionsPath: definitionsPath,
		MacrosDir:       macrosDir,
		Dialect:         dialectName,
		StatePath:       statePath,
		Environment:     environment,
		Verbose:         verbose,
		OutputFormat:    outputFormat,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	// Ensure state directory exists
	if cfg.StatePath != ":memory:" {
		stateDir := filepath.Dir(cfg.StatePath)
		if stateDir != "." && stateDir != "" {
			if err := os.MkdirAll(stateDir, 0750); err != nil {
				return nil, err
			}
		}
	}

	engineCfg := engine.Config{
		DefinitionsPath: cfg.DefinitionsPath,
		MacrosDir:       cfg.MacrosDir,
		StatePath:       cfg.StatePath,
		Environment:     cfg.Environment,
		Dialect:         cfg.Dialect,
		Vars:            cfg.Vars,
		Logger:          logger,
	}

	return engine.New(engineCfg)
}

// definitionsArg returns the positional definitions path, or "" when the
// command was invoked without one.
func definitionsArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
