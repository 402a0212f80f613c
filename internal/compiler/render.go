package compiler

import (
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

// MaterializeView wraps each statement in the dialect's CREATE VIEW DDL.
const MaterializeView = "view"

// BatchOptions control a multi-metric render.
type BatchOptions struct {
	// Metrics selects a subset by name, rendered in the requested order.
	// Empty means every metric in document order.
	Metrics []string
	// Dimensions, ExtraFilters and Dialect apply to every metric; see Options.
	Dimensions   []string
	ExtraFilters []string
	Dialect      *dialect.Dialect
	// ExpandFor builds the macro expansion hook for one metric. Expansion
	// contexts carry metric identity, so the hook is per definition.
	// Nil leaves fragments unexpanded.
	ExpandFor func(*core.MetricDefinition) ExpandFunc
	// Materialize is "" for plain SELECTs or MaterializeView.
	Materialize string
	// ContinueOnError compiles the remaining metrics after a CompileError
	// instead of stopping at the first failure.
	ContinueOnError bool
}

// MetricError pairs a metric name with its compile failure.
type MetricError struct {
	Metric string
	Err    error
}

// BatchResult holds the rendered output of a batch.
type BatchResult struct {
	// SQL is the concatenated output: one "-- metric: <name>" header per
	// statement, statements separated by a blank line.
	SQL string
	// Compiled lists the successfully compiled queries, in output order.
	Compiled []*core.CompiledQuery
	// Failed lists per-metric failures, in selection order. Populated only
	// when ContinueOnError is set; otherwise the first failure is returned
	// as the error.
	Failed []MetricError
}

// RenderBatch compiles the selected metrics and assembles the output text.
//
// Without ContinueOnError the first CompileError aborts the batch and no
// partial output is returned. With it, every selected metric is attempted,
// successful statements are kept, and failures are collected in
// BatchResult.Failed for the caller to report.
func RenderBatch(set *core.DefinitionSet, opts BatchOptions) (*BatchResult, error) {
	d := opts.Dialect
	if d == nil {
		d = dialect.Default()
	}

	switch opts.Materialize {
	case "", MaterializeView:
	default:
		return nil, fmt.Errorf("unsupported materialization type %q (supported: %s)", opts.Materialize, MaterializeView)
	}
	if opts.Materialize == MaterializeView && !d.SupportsViewMaterialization() {
		return nil, fmt.Errorf("dialect %q does not support view materialization", d.Name)
	}

	defs, selectionErrs, err := selectMetrics(set, opts.Metrics, opts.ContinueOnError)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Failed: selectionErrs}
	var blocks []string
	for _, def := range defs {
		var expand ExpandFunc
		if opts.ExpandFor != nil {
			expand = opts.ExpandFor(def)
		}
		q, err := Compile(def, Options{
			Dimensions:   opts.Dimensions,
			ExtraFilters: opts.ExtraFilters,
			Dialect:      d,
			Expand:       expand,
		})
		if err != nil {
			if !opts.ContinueOnError {
				return nil, err
			}
			result.Failed = append(result.Failed, MetricError{Metric: def.Name, Err: err})
			continue
		}

		text := q.SQL
		if opts.Materialize == MaterializeView {
			text, err = d.ViewDDL(def.Name, q.SQL)
			if err != nil {
				return nil, err
			}
		}

		result.Compiled = append(result.Compiled, q)
		blocks = append(blocks, fmt.Sprintf("-- metric: %s\n%s\n", def.Name, text))
	}

	result.SQL = strings.Join(blocks, "\n")
	return result, nil
}

// selectMetrics resolves the requested names against the set. Unknown names
// are CompileErrors: fail-fast by default, collected in batch mode.
func selectMetrics(set *core.DefinitionSet, names []string, continueOnError bool) ([]*core.MetricDefinition, []MetricError, error) {
	if len(names) == 0 {
		return set.Metrics(), nil, nil
	}

	var (
		defs   []*core.MetricDefinition
		failed []MetricError
	)
	for _, name := range names {
		def := set.Get(name)
		if def == nil {
			err := &CompileError{Metric: name, Reason: "not found in definition set"}
			if !continueOnError {
				return nil, nil, err
			}
			failed = append(failed, MetricError{Metric: name, Err: err})
			continue
		}
		defs = append(defs, def)
	}
	return defs, failed, nil
}
