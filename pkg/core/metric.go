package core

import "fmt"

// MetricDefinition represents a single named metric as authored in a
// definitions document. Definitions are value objects: they are built once by
// the loader and never mutated or persisted afterwards.
type MetricDefinition struct {
	// Name is the unique metric name, also used as the SQL column alias.
	Name string
	// Expression is the aggregate SQL expression (e.g. "SUM(revenue - cost)").
	Expression string
	// Source is the table or view the metric selects from.
	Source string
	// Dimensions are the grouping columns, in declaration order, no duplicates.
	Dimensions []string
	// Filters are boolean SQL fragments combined with AND, in declaration order.
	Filters []string
	// Description is free-form documentation text.
	Description string
}

// HasDimension reports whether name is one of the declared dimensions.
func (m *MetricDefinition) HasDimension(name string) bool {
	for _, d := range m.Dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// DefinitionSet is an ordered collection of metric definitions. Order is the
// document order of the source file(s); lookups go through a name index.
type DefinitionSet struct {
	metrics []*MetricDefinition
	byName  map[string]*MetricDefinition
}

// NewDefinitionSet returns an empty definition set.
func NewDefinitionSet() *DefinitionSet {
	return &DefinitionSet{byName: make(map[string]*MetricDefinition)}
}

// Add appends a definition, preserving insertion order.
// Adding a name that is already present is an error.
func (s *DefinitionSet) Add(m *MetricDefinition) error {
	if _, ok := s.byName[m.Name]; ok {
		return fmt.Errorf("duplicate metric %q", m.Name)
	}
	s.metrics = append(s.metrics, m)
	s.byName[m.Name] = m
	return nil
}

// Get returns the definition with the given name, or nil if absent.
func (s *DefinitionSet) Get(name string) *MetricDefinition {
	return s.byName[name]
}

// Metrics returns all definitions in document order.
// The returned slice is shared; callers must not modify it.
func (s *DefinitionSet) Metrics() []*MetricDefinition {
	return s.metrics
}

// Names returns all metric names in document order.
func (s *DefinitionSet) Names() []string {
	names := make([]string, len(s.metrics))
	for i, m := range s.metrics {
		names[i] = m.Name
	}
	return names
}

// Len returns the number of definitions in the set.
func (s *DefinitionSet) Len() int {
	return len(s.metrics)
}

// CompiledQuery is the result of compiling one metric definition.
// It is handed to the caller and never retained.
type CompiledQuery struct {
	// Metric is the definition this query was compiled from.
	Metric *MetricDefinition
	// SQL is the complete SELECT statement, single line, no trailing semicolon.
	SQL string
	// Dialect is the name of the dialect the query was rendered for.
	Dialect string
}
