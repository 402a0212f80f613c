// Package engine assembles a metric project: it loads definitions and
// macros, binds them to a SQL dialect, and hands the compiler everything
// it needs to render queries.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/internal/macro"
	starctx "github.com/quarrylabs/quarry/internal/starlark"
	"github.com/quarrylabs/quarry/internal/state"
	"github.com/quarrylabs/quarry/internal/template"
	"github.com/quarrylabs/quarry/pkg/core"
)

// Engine holds the loaded state of one metric project.
type Engine struct {
	// Structured logger
	logger *slog.Logger

	definitionsPath string
	macrosDir       string
	environment     string
	vars            map[string]any

	// SQL dialect queries are rendered for (resolved once in New)
	dialect *dialect.Dialect

	// State store (lazy initialized)
	statePath string
	store     core.Store
	storeMu   sync.Mutex

	// Loaded definitions, swapped atomically by Load
	mu            sync.RWMutex
	defs          *core.DefinitionSet
	origins       map[string]string
	macroRegistry *macro.Registry
}

// Config holds engine configuration.
type Config struct {
	// DefinitionsPath is the metric definitions file or directory
	DefinitionsPath string
	// MacrosDir is the path to the Starlark macros directory (optional)
	MacrosDir string
	// StatePath is the path to the SQLite state database (empty for in-memory)
	StatePath string
	// Environment is the current environment (dev, staging, prod)
	Environment string
	// Dialect is the SQL dialect name (empty selects the default)
	Dialect string
	// Vars are project variables exposed to macro expressions
	Vars map[string]any
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine with lazy state store initialization.
// Definitions are not read until Load is called, and the state store is
// only opened when Store() is.
func New(cfg Config) (*Engine, error) {
	// Initialize logger (use discard handler if nil)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := dialect.Default()
	if cfg.Dialect != "" {
		var err error
		d, err = dialect.Lookup(cfg.Dialect)
		if err != nil {
			return nil, err
		}
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = ":memory:"
	}

	logger.Debug("initializing engine",
		"definitions_path", cfg.DefinitionsPath,
		"dialect", d.Name,
		"environment", env)

	return &Engine{
		logger:          logger,
		definitionsPath: cfg.DefinitionsPath,
		macrosDir:       cfg.MacrosDir,
		environment:     env,
		vars:            cfg.Vars,
		dialect:         d,
		statePath:       statePath,
		defs:            core.NewDefinitionSet(),
		origins:         make(map[string]string),
		macroRegistry:   macro.NewRegistry(),
	}, nil
}

// Store returns the state store, opening it on first use.
func (e *Engine) Store() (core.Store, error) {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	if e.store != nil {
		return e.store, nil
	}

	e.logger.Debug("opening state store", "path", e.statePath)

	st := state.NewSQLiteStore()
	if err := st.Open(e.statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	e.store = st
	return e.store, nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	e.storeMu.Lock()
	defer e.storeMu.Unlock()

	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	if err != nil {
		return fmt.Errorf("failed to close state store: %w", err)
	}
	return nil
}

// ExpressionContext builds a Starlark evaluation context carrying the
// engine's environment, dialect, vars, and loaded macros. def may be nil
// for contexts outside any metric, such as the repl.
func (e *Engine) ExpressionContext(def *core.MetricDefinition) *starctx.ExecutionContext {
	return e.ExpressionContextWith(e.dialect, def)
}

// ExpressionContextWith is ExpressionContext with the dialect overridden,
// so env.dialect inside expressions tracks a caller-chosen dialect. The
// repl and the serve API use this when a session or request switches
// dialects without reconfiguring the engine.
func (e *Engine) ExpressionContextWith(d *dialect.Dialect, def *core.MetricDefinition) *starctx.ExecutionContext {
	e.mu.RLock()
	registry := e.macroRegistry
	e.mu.RUnlock()

	return starctx.NewContext(e.environment, d.Name, starctx.MetricInfoFromDefinition(def),
		starctx.WithVars(e.vars),
		starctx.WithMacroRegistry(registry),
	)
}

// ExpandFor builds the macro expansion hook for one metric definition.
// Its signature matches compiler.BatchOptions.ExpandFor so commands can
// pass it straight through.
func (e *Engine) ExpandFor(def *core.MetricDefinition) compiler.ExpandFunc {
	return e.ExpandWith(e.dialect, def)
}

// ExpandWith builds the expansion hook for def rendered under a specific
// dialect.
func (e *Engine) ExpandWith(d *dialect.Dialect, def *core.MetricDefinition) compiler.ExpandFunc {
	return template.Expander(e.Origin(def.Name), e.ExpressionContextWith(d, def))
}

// --- Getters (public accessors) ---

// Definitions returns the currently loaded definition set.
func (e *Engine) Definitions() *core.DefinitionSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defs
}

// Origin returns the definitions file a metric was loaded from,
// or the definitions path itself when the metric is unknown.
func (e *Engine) Origin(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if file, ok := e.origins[name]; ok {
		return file
	}
	return e.definitionsPath
}

// Macros returns the loaded macro registry.
func (e *Engine) Macros() *macro.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.macroRegistry
}

// Dialect returns the SQL dialect queries are rendered for.
func (e *Engine) Dialect() *dialect.Dialect {
	return e.dialect
}

// Environment returns the active environment name.
func (e *Engine) Environment() string {
	return e.environment
}

// Vars returns the project variables.
func (e *Engine) Vars() map[string]any {
	return e.vars
}
