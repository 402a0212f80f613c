package starlark

import (
	"go.starlark.net/starlark"
)

// BuildVarsDict creates the vars dict from project variables.
// Entries whose values cannot be represented in Starlark are dropped;
// config files are permissive about value types and expansion only needs
// the representable subset.
func BuildVarsDict(vars map[string]any) starlark.Value {
	dict := starlark.NewDict(len(vars))

	for k, v := range vars {
		sv, err := GoToStarlark(v)
		if err != nil {
			continue
		}
		_ = dict.SetKey(starlark.String(k), sv)
	}

	return dict
}

// Predeclared returns all predeclared/builtin globals for expression execution.
// This includes: vars, env, dialect, metric
// Note: Macros are added separately via the macro loader.
func Predeclared(vars starlark.Value, env, dialect string, metric *MetricInfo) starlark.StringDict {
	if vars == nil {
		vars = starlark.NewDict(0)
	}

	globals := starlark.StringDict{
		"vars":    vars,
		"env":     starlark.String(env),
		"dialect": starlark.String(dialect),
	}

	if metric != nil {
		globals["metric"] = metric.ToStarlark()
	}

	return globals
}
