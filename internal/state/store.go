// Package state persists ingest history in SQLite. It tracks pipeline runs
// and the per-file outcomes recorded during each run, with the schema
// managed by embedded goose migrations.
package state

import (
	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/pkg/core"
)

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// Ensure SQLiteStore implements the core.Store interface.
var _ core.Store = (*SQLiteStore)(nil)
