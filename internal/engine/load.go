// load.go contains the definitions and macro loading pass.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quarrylabs/quarry/internal/loader"
	"github.com/quarrylabs/quarry/internal/macro"
	"github.com/quarrylabs/quarry/pkg/core"
)

// LoadOptions configures a load pass.
type LoadOptions struct {
	// ContinueOnError collects per-file definition errors instead of
	// stopping at the first one. Metrics from clean files still load.
	ContinueOnError bool
}

// FileResult reports what the load pass found in one definitions file.
type FileResult struct {
	Path    string
	Metrics int
	Errors  []string
}

// LoadResult contains statistics about a load pass.
type LoadResult struct {
	// Files lists every definitions file visited, in load order.
	Files []FileResult

	MetricsTotal    int
	MacroNamespaces int

	// Timing
	Duration time.Duration
}

// ErrorCount returns the total number of errors across all files.
func (r *LoadResult) ErrorCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Errors)
	}
	return n
}

// HasErrors returns true if any errors occurred.
func (r *LoadResult) HasErrors() bool {
	return r.ErrorCount() > 0
}

// Summary returns a human-readable summary.
func (r *LoadResult) Summary() string {
	return fmt.Sprintf(
		"Metrics: %d across %d file(s) | Macro namespaces: %d | Errors: %d | Duration: %s",
		r.MetricsTotal, len(r.Files), r.MacroNamespaces, r.ErrorCount(),
		r.Duration.Round(time.Millisecond),
	)
}

// Load reads macros and metric definitions from the configured paths and
// swaps them into the engine. A failed load leaves the previously loaded
// definitions in place, so a watch loop keeps serving the last good state.
func (e *Engine) Load(opts LoadOptions) (*LoadResult, error) {
	start := time.Now()
	result := &LoadResult{}

	e.logger.Debug("loading macros", "macros_dir", e.macrosDir)

	// 1. Load macros first (definitions reference them in expressions).
	// A missing macros directory yields an empty registry.
	registry, err := macro.LoadAndRegister(e.macrosDir)
	if err != nil {
		if !opts.ContinueOnError {
			return result, fmt.Errorf("macro loading failed: %w", err)
		}
		result.Files = append(result.Files, FileResult{
			Path:   e.macrosDir,
			Errors: []string{err.Error()},
		})
		registry = macro.NewRegistry()
	}

	// 2. Load definitions file by file, tracking each metric's origin.
	paths, err := e.definitionFiles()
	if err != nil {
		return result, err
	}

	merged := core.NewDefinitionSet()
	origins := make(map[string]string)

	for _, path := range paths {
		fr := FileResult{Path: path}

		set, err := loader.LoadFile(path)
		if err != nil {
			if !opts.ContinueOnError {
				return result, err
			}
			e.logger.Debug("definition parse error", "path", path, "error", err.Error())
			fr.Errors = append(fr.Errors, err.Error())
			result.Files = append(result.Files, fr)
			continue
		}

		for _, m := range set.Metrics() {
			if prev, ok := origins[m.Name]; ok {
				dupErr := &loader.DefinitionError{
					File:    path,
					Metric:  m.Name,
					Message: fmt.Sprintf("duplicate metric %q (already defined in %s)", m.Name, prev),
				}
				if !opts.ContinueOnError {
					return result, dupErr
				}
				fr.Errors = append(fr.Errors, dupErr.Error())
				continue
			}
			origins[m.Name] = path
			if err := merged.Add(m); err != nil {
				return result, &loader.DefinitionError{File: path, Metric: m.Name, Message: err.Error()}
			}
			fr.Metrics++
		}

		result.Files = append(result.Files, fr)
	}

	// 3. Swap the loaded state in.
	e.mu.Lock()
	e.defs = merged
	e.origins = origins
	e.macroRegistry = registry
	e.mu.Unlock()

	result.MetricsTotal = merged.Len()
	result.MacroNamespaces = registry.Len()
	result.Duration = time.Since(start)

	e.logger.Info("definitions loaded",
		"metrics", result.MetricsTotal,
		"files", len(result.Files),
		"macro_namespaces", result.MacroNamespaces,
		"errors", result.ErrorCount(),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// definitionFiles resolves the definitions path to the list of files to
// load. A directory yields its definitions files in name order; anything
// else is treated as a single file.
func (e *Engine) definitionFiles() ([]string, error) {
	info, err := os.Stat(e.definitionsPath)
	if err != nil {
		return nil, fmt.Errorf("stat definitions path: %w", err)
	}
	if !info.IsDir() {
		return []string{e.definitionsPath}, nil
	}

	entries, err := os.ReadDir(e.definitionsPath)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yml", ".yaml", ".json":
			paths = append(paths, filepath.Join(e.definitionsPath, entry.Name()))
		}
	}
	return paths, nil
}
