// Package core defines the shared language of the Quarry system.
//
// This package contains:
//   - Domain entities (MetricDefinition, DefinitionSet, CompiledQuery)
//   - The ingest state interface and its records (Store, IngestRun, IngestFile)
//   - Configuration types (ProjectConfig, IngestSettings, ServeSettings)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
