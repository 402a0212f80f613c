// Package compiler turns metric definitions into executable SELECT statements.
//
// Compilation is a pure transform: no I/O, no retained state, byte-identical
// output for identical input. Anything that cannot be rendered as requested
// is reported as a CompileError carrying the metric name and the violated rule.
package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quarrylabs/quarry/internal/dialect"
	"github.com/quarrylabs/quarry/pkg/core"
)

// ExpandFunc rewrites macro calls inside an expression or filter fragment.
// Expansion runs before validation, so macro output is subject to the same
// forbidden-fragment rules as authored SQL.
type ExpandFunc func(fragment string) (string, error)

// Options control how a single metric is compiled.
type Options struct {
	// Dimensions requests a subset of the declared dimensions, in request
	// order. nil means all declared dimensions; an empty non-nil slice
	// compiles a global aggregate with no GROUP BY.
	Dimensions []string
	// ExtraFilters are appended after the declared filters.
	ExtraFilters []string
	// Dialect selects quoting rules. nil means the default ANSI dialect.
	Dialect *dialect.Dialect
	// Expand, when set, rewrites macro calls before validation.
	Expand ExpandFunc
}

// identPattern matches a bare SQL identifier: letters, digits, underscore,
// not starting with a digit.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// qualifiedPattern additionally allows one schema-qualifying dot.
var qualifiedPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// forbiddenFragments are rejected anywhere in expressions and filters.
// Order is significant: the first match is the one reported.
var forbiddenFragments = []string{";", "--", "/*"}

// Compile renders one metric definition as a single-line SELECT statement:
//
//	SELECT <dims>, <expr> AS <name> FROM <source> [WHERE ...] [GROUP BY <dims>]
//
// with every filter individually parenthesized and AND-joined, and GROUP BY
// present only when the effective dimension list is non-empty.
func Compile(def *core.MetricDefinition, opts Options) (*core.CompiledQuery, error) {
	d := opts.Dialect
	if d == nil {
		d = dialect.Default()
	}

	if !identPattern.MatchString(def.Name) {
		return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("metric name %q is not a valid SQL identifier", def.Name)}
	}
	if !qualifiedPattern.MatchString(def.Source) {
		return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("source %q is not a valid table identifier", def.Source)}
	}

	expr, err := expandFragment(def.Name, def.Expression, opts.Expand)
	if err != nil {
		return nil, err
	}
	if expr == "" {
		return nil, &CompileError{Metric: def.Name, Reason: "expression is empty after macro expansion"}
	}
	if frag := findForbidden(expr); frag != "" {
		return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("expression contains forbidden fragment %q", frag)}
	}

	dims, err := resolveDimensions(def, opts.Dimensions)
	if err != nil {
		return nil, err
	}

	filters := make([]string, 0, len(def.Filters)+len(opts.ExtraFilters))
	filters = append(filters, def.Filters...)
	filters = append(filters, opts.ExtraFilters...)
	for i, f := range filters {
		f, err = expandFragment(def.Name, f, opts.Expand)
		if err != nil {
			return nil, err
		}
		if f == "" {
			return nil, &CompileError{Metric: def.Name, Reason: "filter is empty"}
		}
		if frag := findForbidden(f); frag != "" {
			return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("filter contains forbidden fragment %q", frag)}
		}
		filters[i] = f
	}

	quotedDims := make([]string, len(dims))
	for i, dim := range dims {
		quotedDims[i] = d.QuoteQualified(dim)
	}

	selectList := make([]string, 0, len(dims)+1)
	selectList = append(selectList, quotedDims...)
	selectList = append(selectList, expr+" AS "+d.QuoteIdentifierIfNeeded(def.Name))

	parts := []string{
		"SELECT " + strings.Join(selectList, ", "),
		"FROM " + d.QuoteQualified(def.Source),
	}
	if len(filters) > 0 {
		wrapped := make([]string, len(filters))
		for i, f := range filters {
			wrapped[i] = "(" + f + ")"
		}
		parts = append(parts, "WHERE "+strings.Join(wrapped, " AND "))
	}
	if len(quotedDims) > 0 {
		parts = append(parts, "GROUP BY "+strings.Join(quotedDims, ", "))
	}

	return &core.CompiledQuery{
		Metric:  def,
		SQL:     strings.Join(parts, " "),
		Dialect: d.Name,
	}, nil
}

// resolveDimensions validates the declared dimensions, then the requested
// subset against them. No implicit dimension discovery: every requested name
// must be declared.
func resolveDimensions(def *core.MetricDefinition, requested []string) ([]string, error) {
	for _, dim := range def.Dimensions {
		if !qualifiedPattern.MatchString(dim) {
			return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("dimension %q is not a valid identifier", dim)}
		}
	}
	if requested == nil {
		return def.Dimensions, nil
	}

	seen := make(map[string]bool, len(requested))
	dims := make([]string, 0, len(requested))
	for _, dim := range requested {
		if !def.HasDimension(dim) {
			return nil, &CompileError{
				Metric: def.Name,
				Reason: fmt.Sprintf("unknown dimension %q (declared: %s)", dim, strings.Join(def.Dimensions, ", ")),
			}
		}
		if seen[dim] {
			return nil, &CompileError{Metric: def.Name, Reason: fmt.Sprintf("dimension %q requested more than once", dim)}
		}
		seen[dim] = true
		dims = append(dims, dim)
	}
	return dims, nil
}

func expandFragment(metric, fragment string, expand ExpandFunc) (string, error) {
	fragment = strings.TrimSpace(fragment)
	if expand == nil {
		return fragment, nil
	}
	expanded, err := expand(fragment)
	if err != nil {
		return "", &CompileError{Metric: metric, Reason: fmt.Sprintf("macro expansion failed: %v", err)}
	}
	return strings.TrimSpace(expanded), nil
}

func findForbidden(fragment string) string {
	for _, frag := range forbiddenFragments {
		if strings.Contains(fragment, frag) {
			return frag
		}
	}
	return ""
}

// CompileError represents a metric that cannot be rendered as requested.
type CompileError struct {
	Metric string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile metric %q: %s", e.Metric, e.Reason)
}
