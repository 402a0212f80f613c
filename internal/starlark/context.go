package starlark

import (
	"fmt"
	"sync"

	"github.com/quarrylabs/quarry/internal/macro"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions controls Starlark parsing. The zero value selects the
// standard Starlark dialect.
var fileOptions = &syntax.FileOptions{}

// ExecutionContext provides all globals and state for expanding macro
// expressions inside metric definitions.
type ExecutionContext struct {
	// Env is the current environment string
	// Values: "prod", "dev", "staging", etc.
	Env string

	// Dialect is the name of the SQL dialect being rendered
	// Values: "ansi", "duckdb", "postgres", etc.
	Dialect string

	// Vars contains project variables from the config file
	// Accessible as: vars["start_date"], vars["fiscal_year_end"], etc.
	Vars map[string]any

	// Metric identifies the metric under expansion
	// Accessible as: metric.name, metric.source
	// Nil outside a metric, e.g. in the repl.
	Metric *MetricInfo

	// Macros contains loaded macro namespaces
	// Each key is a namespace (e.g., "dates") with a module of functions
	Macros starlark.StringDict

	// globals is the combined set of all globals for execution
	globals starlark.StringDict

	// mu protects globals during initialization
	mu sync.RWMutex
}

// NewExecutionContext creates a new execution context with the given parameters.
func NewExecutionContext(env, dialect string, metric *MetricInfo) *ExecutionContext {
	ctx := &ExecutionContext{
		Env:     env,
		Dialect: dialect,
		Metric:  metric,
		Macros:  make(starlark.StringDict),
	}
	ctx.buildGlobals()
	return ctx
}

// buildGlobals constructs the combined globals dict.
func (ctx *ExecutionContext) buildGlobals() {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()

	ctx.globals = Predeclared(BuildVarsDict(ctx.Vars), ctx.Env, ctx.Dialect, ctx.Metric)

	// Add macros
	for name, macro := range ctx.Macros {
		ctx.globals[name] = macro
	}
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.globals
}

// AddMacros adds macro namespaces to the context.
// Returns error if a macro name conflicts with a builtin.
func (ctx *ExecutionContext) AddMacros(macros starlark.StringDict) error {
	builtins := map[string]bool{
		"vars":    true,
		"env":     true,
		"dialect": true,
		"metric":  true,
	}

	for name := range macros {
		if builtins[name] {
			return fmt.Errorf("macro namespace %q conflicts with builtin", name)
		}
	}

	ctx.mu.Lock()
	for name, macro := range macros {
		ctx.Macros[name] = macro
	}
	ctx.mu.Unlock()

	ctx.buildGlobals()
	return nil
}

// EvalExpr evaluates a single Starlark expression and returns the result.
// This is used for {{ expr }} fragments in metric expressions and filters.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	thread := ctx.newThread(filename)

	result, err := starlark.EvalOptions(fileOptions, thread, filename, expr, ctx.Globals())
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
		}
	}

	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
// This is the typical use case for expression fragments.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	result, err := ctx.EvalExpr(expr, filename, line)
	if err != nil {
		return "", err
	}

	// Convert result to string
	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		// Use Starlark's string representation for other types
		return result.String(), nil
	}
}

// newThread creates a new Starlark thread for execution.
func (ctx *ExecutionContext) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, _ string) {
			// Expression evaluation should not print - this is a no-op
		},
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

// ContextOption is a functional option for configuring ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithVars sets the project variables for the context.
func WithVars(vars map[string]any) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Vars = vars
	}
}

// WithMacros sets the macros for the context.
func WithMacros(macros starlark.StringDict) ContextOption {
	return func(ctx *ExecutionContext) {
		ctx.Macros = macros
	}
}

// WithMacroRegistry sets macros from a macro.Registry.
// This is the preferred way to inject macros loaded from .star files.
func WithMacroRegistry(registry *macro.Registry) ContextOption {
	return func(ctx *ExecutionContext) {
		if registry != nil {
			ctx.Macros = registry.ToStarlarkDict()
		}
	}
}

// NewContext creates a new execution context with functional options.
// This is an alternative constructor that uses the options pattern.
func NewContext(env, dialect string, metric *MetricInfo, opts ...ContextOption) *ExecutionContext {
	ctx := &ExecutionContext{
		Env:     env,
		Dialect: dialect,
		Metric:  metric,
		Macros:  make(starlark.StringDict),
	}

	for _, opt := range opts {
		opt(ctx)
	}

	ctx.buildGlobals()
	return ctx
}
