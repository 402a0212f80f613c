package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	sharedcfg "github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

// loggerKey is used to store the logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// findConfigFile finds the config file to use.
// Priority: explicit path > quarry.yaml > quarry.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(sharedcfg.ConfigFileName); err == nil {
		return sharedcfg.ConfigFileName
	}
	if _, err := os.Stat(sharedcfg.ConfigFileNameAlt); err == nil {
		return sharedcfg.ConfigFileNameAlt
	}
	return ""
}

// configExistsIn checks if a quarry config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{sharedcfg.ConfigFileName, sharedcfg.ConfigFileNameAlt} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a quarry config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Explicit --project-dir flag
//  2. Infer from --definitions (parent if it contains a config or is named "metrics")
//  3. Search upward from CWD for quarry.yaml
//  4. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	// 1. Check explicit --project-dir
	if flags != nil {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" && flags.Changed("project-dir") {
			abs, err := filepath.Abs(projectDir)
			if err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	// 2. Infer from --definitions
	if flags != nil {
		if defsPath, _ := flags.GetString("definitions"); defsPath != "" && flags.Changed("definitions") {
			absDefs, err := filepath.Abs(defsPath)
			if err == nil {
				parent := filepath.Dir(absDefs)

				// If parent has a config file, it's the project root
				if configExistsIn(parent) {
					return parent
				}

				// If the directory is named "metrics", assume parent is root
				if filepath.Base(absDefs) == DefaultDefinitionsPath {
					return parent
				}
			}
		}
	}

	// 3. Search upward from CWD for quarry.yaml
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	// 4. Default to CWD
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	return LoadConfigWithEnv(cfgFile, "", flags)
}

// LoadConfigWithEnv loads configuration with an optional environment override.
// The envOverride parameter selects which environment's overrides to apply.
// The flags parameter allows CLI flags to override config file and env var values.
func LoadConfigWithEnv(cfgFile string, envOverride string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Infer project root from flags before loading config.
	// This enables the "anchor pattern" where --definitions testdata/metrics
	// implies project root is testdata/
	projectRoot := inferProjectRoot(flags)

	// Track paths that were explicitly provided as flags (already relative to CWD).
	// These will be converted to absolute paths before the normal resolution step,
	// to prevent double-resolution when project root was inferred from them.
	var flagDefsPath, flagMacrosDir, flagStatePath string
	if flags != nil {
		if flags.Changed("definitions") {
			if v, _ := flags.GetString("definitions"); v != "" {
				flagDefsPath, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("macros-dir") {
			if v, _ := flags.GetString("macros-dir"); v != "" {
				flagMacrosDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" {
				// State path can be :memory: or a file path
				if v != ":memory:" {
					flagStatePath, _ = filepath.Abs(v)
				} else {
					flagStatePath = v
				}
			}
		}
	}

	// If an explicit config file is provided, use its directory as project root
	// (unless a more specific hint was given via flags)
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		// No flag-based inference happened, use config file's directory
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"definitions_path": DefaultDefinitionsPath,
		"macros_dir":       DefaultMacrosDir,
		"dialect":          DefaultDialect,
		"state_path":       DefaultStateFile,
		"environment":      DefaultEnv,
		"verbose":          false,
		"output":           DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	// Search in project root if no explicit config file provided
	if cfgFile == "" {
		for _, name := range []string{sharedcfg.ConfigFileName, sharedcfg.ConfigFileNameAlt} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (QUARRY_ prefix)
	// Transform: QUARRY_DEFINITIONS_PATH -> definitions_path
	if err := k.Load(env.Provider("QUARRY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "QUARRY_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// EXPLICIT MAPPING: the CLI uses short flag names, the config
			// struct uses the longer keys for clarity
			switch key {
			case "state":
				return "state_path", posflag.FlagVal(flags, f)
			case "definitions":
				return "definitions_path", posflag.FlagVal(flags, f)
			case "env":
				return "environment", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct. Env provider values arrive as
	// strings, so weak typing is what turns QUARRY_VERBOSE=true and
	// QUARRY_SERVE_PORT=8080 into the typed fields.
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root and resolve relative paths
	// Use project root as base for all path resolution (not config file directory).
	// This implements the "anchor pattern" for intuitive path resolution.
	cfg.ProjectRoot = projectRoot

	// For paths explicitly provided via flags, use the pre-computed absolute paths
	// (already computed relative to CWD at flag parse time).
	// For paths from config file or defaults, resolve relative to project root.
	if flagDefsPath != "" {
		cfg.DefinitionsPath = flagDefsPath
	} else {
		cfg.DefinitionsPath = resolvePathRelativeTo(cfg.DefinitionsPath, projectRoot)
	}
	if flagMacrosDir != "" {
		cfg.MacrosDir = flagMacrosDir
	} else {
		cfg.MacrosDir = resolvePathRelativeTo(cfg.MacrosDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else if cfg.StatePath != ":memory:" {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	// Determine which environment's overrides to apply
	selectedEnv := cfg.Environment
	if envOverride != "" {
		selectedEnv = envOverride
		cfg.Environment = envOverride
	}

	// Apply environment-specific overrides if an environment is selected
	if selectedEnv != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[selectedEnv]; ok {
			if envCfg.Dialect != "" {
				cfg.Dialect = envCfg.Dialect
			}
			if envCfg.DefinitionsPath != "" {
				cfg.DefinitionsPath = resolvePathRelativeTo(envCfg.DefinitionsPath, projectRoot)
			}
			if len(envCfg.Vars) > 0 {
				if cfg.Vars == nil {
					cfg.Vars = make(map[string]any, len(envCfg.Vars))
				}
				for name, value := range envCfg.Vars {
					cfg.Vars[name] = value
				}
			}
			if envCfg.Ingest != nil {
				cfg.Ingest = MergeIngestSettings(cfg.Ingest, envCfg.Ingest)
			}
		}
	}

	// Expand environment variables in ingest paths, then anchor relative
	// ones to the project root like every other project path
	expandIngestEnvVars(cfg.Ingest)
	if cfg.Ingest != nil {
		cfg.Ingest.LandingDir = resolvePathRelativeTo(cfg.Ingest.LandingDir, projectRoot)
		cfg.Ingest.InboxDir = resolvePathRelativeTo(cfg.Ingest.InboxDir, projectRoot)
		cfg.Ingest.ManifestPath = resolvePathRelativeTo(cfg.Ingest.ManifestPath, projectRoot)
	}

	// Validate the dialect name against the registry
	if _, err := dialect.Lookup(cfg.Dialect); err != nil {
		return nil, fmt.Errorf("invalid dialect configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig or LoadConfigWithEnv is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR}
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandIngestEnvVars expands environment variables in ingest path fields.
func expandIngestEnvVars(s *core.IngestSettings) {
	if s == nil {
		return
	}
	s.LandingDir = expandEnvVars(s.LandingDir)
	s.InboxDir = expandEnvVars(s.InboxDir)
	s.ManifestPath = expandEnvVars(s.ManifestPath)
}

// MergeIngestSettings merges two ingest configs, with override taking precedence.
// Enforcement flags can be switched on by the override but not off; an
// environment that must not enforce needs its own base-level settings.
func MergeIngestSettings(base, override *core.IngestSettings) *core.IngestSettings {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base

	if override.LandingDir != "" {
		merged.LandingDir = override.LandingDir
	}
	if override.InboxDir != "" {
		merged.InboxDir = override.InboxDir
	}
	if override.Glob != "" {
		merged.Glob = override.Glob
	}
	if override.ManifestPath != "" {
		merged.ManifestPath = override.ManifestPath
	}
	if override.EnforceSize {
		merged.EnforceSize = true
	}
	if override.EnforceChecksum {
		merged.EnforceChecksum = true
	}

	return &merged
}
