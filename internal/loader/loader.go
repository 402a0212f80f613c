// Package loader parses metric definition documents into core types.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quarrylabs/quarry/pkg/core"
)

// Format identifies a definitions document format.
type Format string

// Supported document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DetectFormat infers the document format from a file extension.
// ".yml" and ".yaml" are YAML; everything else is treated as JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// knownFields are the keys allowed inside a metric object.
// Unknown fields cause a DefinitionError (guards against typos).
var knownFields = map[string]bool{
	"expression":  true,
	"source":      true,
	"dimensions":  true,
	"filters":     true,
	"description": true,
}

// metricYAML is an internal type for document unmarshaling.
type metricYAML struct {
	Expression  string   `yaml:"expression" json:"expression"`
	Source      string   `yaml:"source" json:"source"`
	Dimensions  []string `yaml:"dimensions" json:"dimensions"`
	Filters     []string `yaml:"filters" json:"filters"`
	Description string   `yaml:"description" json:"description"`
}

// rawMetric is one parsed top-level entry, before validation.
type rawMetric struct {
	name string
	cfg  metricYAML
	line int // 0 when the format has no position info
}

// Load parses a definitions document into a DefinitionSet.
// It performs no file I/O; the document's top level must be a mapping from
// metric name to metric object. Document order is preserved.
func Load(data []byte, format Format) (*core.DefinitionSet, error) {
	var (
		raws []rawMetric
		err  error
	)
	switch format {
	case FormatJSON:
		raws, err = parseJSON(data)
	default:
		raws, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}
	return buildSet(raws)
}

// LoadFile reads one definitions file, inferring the format from its extension.
func LoadFile(path string) (*core.DefinitionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	set, err := Load(data, DetectFormat(path))
	if err != nil {
		return nil, attachFile(err, path)
	}
	return set, nil
}

// LoadDir loads and merges every definitions file in a directory.
// Files are processed in name order; a metric name appearing in two files is
// a DefinitionError naming both.
func LoadDir(dir string) (*core.DefinitionSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}

	merged := core.NewDefinitionSet()
	origin := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yml", ".yaml", ".json":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		set, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range set.Metrics() {
			if prev, ok := origin[m.Name]; ok {
				return nil, &DefinitionError{
					File:    path,
					Metric:  m.Name,
					Message: fmt.Sprintf("duplicate metric %q (already defined in %s)", m.Name, prev),
				}
			}
			origin[m.Name] = path
			if err := merged.Add(m); err != nil {
				return nil, &DefinitionError{File: path, Metric: m.Name, Message: err.Error()}
			}
		}
	}
	return merged, nil
}

// LoadPath loads a definitions file or, if path is a directory, every
// definitions file inside it.
func LoadPath(path string) (*core.DefinitionSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat definitions path: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// parseYAML walks the yaml.Node tree so entry order survives and duplicate
// keys are visible to the caller.
func parseYAML(data []byte) ([]rawMetric, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DefinitionError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// Empty document: a valid, empty definition set.
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Value == "" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, &DefinitionError{
			Line:    root.Line,
			Message: "top level must be a mapping of metric name to metric object",
		}
	}

	var raws []rawMetric
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value

		if valNode.Kind != yaml.MappingNode {
			return nil, &DefinitionError{
				Line:    valNode.Line,
				Metric:  name,
				Message: "metric body must be a mapping",
			}
		}
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			field := valNode.Content[j].Value
			if !knownFields[field] {
				return nil, unknownFieldError(name, field, valNode.Content[j].Line)
			}
		}

		var cfg metricYAML
		if err := valNode.Decode(&cfg); err != nil {
			return nil, &DefinitionError{
				Line:    valNode.Line,
				Metric:  name,
				Message: fmt.Sprintf("invalid metric body: %v", err),
			}
		}
		raws = append(raws, rawMetric{name: name, cfg: cfg, line: keyNode.Line})
	}
	return raws, nil
}

// parseJSON walks the token stream so entry order survives; a plain
// map unmarshal would randomize it.
func parseJSON(data []byte) ([]rawMetric, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, &DefinitionError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &DefinitionError{Message: "top level must be an object of metric name to metric object"}
	}

	var raws []rawMetric
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &DefinitionError{Message: fmt.Sprintf("invalid JSON: %v", err)}
		}
		name := keyTok.(string)

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, &DefinitionError{Metric: name, Message: fmt.Sprintf("invalid metric body: %v", err)}
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, &DefinitionError{Metric: name, Message: "metric body must be an object"}
		}
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, f := range names {
			if !knownFields[f] {
				return nil, unknownFieldError(name, f, 0)
			}
		}

		var cfg metricYAML
		if err := json.Unmarshal(body, &cfg); err != nil {
			return nil, &DefinitionError{Metric: name, Message: fmt.Sprintf("invalid metric body: %v", err)}
		}
		raws = append(raws, rawMetric{name: name, cfg: cfg})
	}

	// Consume the closing brace, then require end of input.
	if _, err := dec.Token(); err != nil {
		return nil, &DefinitionError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &DefinitionError{Message: "trailing content after top-level object"}
	}
	return raws, nil
}

// buildSet validates raw entries and assembles the ordered set.
func buildSet(raws []rawMetric) (*core.DefinitionSet, error) {
	set := core.NewDefinitionSet()
	for _, r := range raws {
		if strings.TrimSpace(r.name) == "" {
			return nil, &DefinitionError{Line: r.line, Message: "metric name must not be empty"}
		}
		if strings.TrimSpace(r.cfg.Expression) == "" {
			return nil, missingFieldError(r.name, "expression", r.line)
		}
		if strings.TrimSpace(r.cfg.Source) == "" {
			return nil, missingFieldError(r.name, "source", r.line)
		}

		seen := make(map[string]bool, len(r.cfg.Dimensions))
		for _, d := range r.cfg.Dimensions {
			if seen[d] {
				return nil, &DefinitionError{
					Line:    r.line,
					Metric:  r.name,
					Field:   "dimensions",
					Message: fmt.Sprintf("duplicate dimension %q", d),
				}
			}
			seen[d] = true
		}

		def := &core.MetricDefinition{
			Name:        r.name,
			Expression:  r.cfg.Expression,
			Source:      r.cfg.Source,
			Dimensions:  append([]string(nil), r.cfg.Dimensions...),
			Filters:     append([]string(nil), r.cfg.Filters...),
			Description: r.cfg.Description,
		}
		if err := set.Add(def); err != nil {
			return nil, &DefinitionError{Line: r.line, Metric: r.name, Message: err.Error()}
		}
	}
	return set, nil
}

func missingFieldError(metric, field string, line int) *DefinitionError {
	return &DefinitionError{
		Line:    line,
		Metric:  metric,
		Field:   field,
		Message: fmt.Sprintf("missing required field %q", field),
	}
}

func unknownFieldError(metric, field string, line int) *DefinitionError {
	return &DefinitionError{
		Line:    line,
		Metric:  metric,
		Field:   field,
		Message: fmt.Sprintf("unknown field %q (known fields: expression, source, dimensions, filters, description)", field),
	}
}

// attachFile sets the file on a DefinitionError that doesn't carry one yet.
func attachFile(err error, path string) error {
	var defErr *DefinitionError
	if errors.As(err, &defErr) && defErr.File == "" {
		defErr.File = path
	}
	return err
}

// DefinitionError represents an invalid or unparseable definitions document.
type DefinitionError struct {
	File    string
	Line    int
	Metric  string
	Field   string
	Message string
}

func (e *DefinitionError) Error() string {
	msg := e.Message
	if e.Metric != "" {
		msg = fmt.Sprintf("metric %q: %s", e.Metric, msg)
	}
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
		}
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}
