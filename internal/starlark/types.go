// Package starlark provides the Starlark execution context and builtins used
// to expand macro expressions embedded in metric definitions.
package starlark

import (
	"fmt"

	"github.com/quarrylabs/quarry/pkg/core"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// MetricInfo identifies the metric whose fragments are being expanded.
// Exposed as the "metric" global in Starlark execution.
type MetricInfo struct {
	Name   string // Metric name as declared in the definitions file
	Source string // Table or view the metric reads from
}

// ToStarlark converts MetricInfo to a Starlark struct value.
func (m *MetricInfo) ToStarlark() starlark.Value {
	return starlarkstruct.FromStringDict(starlark.String("metric"), starlark.StringDict{
		"name":   starlark.String(m.Name),
		"source": starlark.String(m.Source),
	})
}

// MetricInfoFromDefinition extracts the identity fields of a definition for
// expression evaluation. The SQL fragments themselves are not exposed.
func MetricInfoFromDefinition(def *core.MetricDefinition) *MetricInfo {
	if def == nil {
		return nil
	}
	return &MetricInfo{
		Name:   def.Name,
		Source: def.Source,
	}
}

// GoToStarlark converts a Go value to a Starlark value.
// Supported types: string, int, int64, float64, bool, []string, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := GoToStarlark(v)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
