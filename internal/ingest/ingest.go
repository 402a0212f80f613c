// Package ingest moves files from a landing directory into the project
// inbox. An external transfer process (SFTP, rsync, a vendor upload) drops
// files into the landing directory; the pipeline scans them, verifies them
// against an optional manifest, and promotes the good ones into the inbox
// with an atomic rename. Every run and every per-file outcome is recorded
// in the state store.
//
// The pipeline is a fixed list of stage functions executed in order:
// scan, match, resolve, verify, commit. Stages annotate a shared Batch;
// file-level problems mark the file failed and the pipeline continues,
// while stage-level problems (unreadable landing dir, broken manifest)
// abort the run.
package ingest

import (
	"log/slog"

	"github.com/quarrylabs/quarry/pkg/core"
)

// RunStore is the slice of the state store the runner records into.
type RunStore interface {
	CreateIngestRun(landingDir string) (*core.IngestRun, error)
	CompleteIngestRun(id string, status core.IngestRunStatus, counts core.IngestCounts, errMsg string) error
	RecordIngestFile(file *core.IngestFile) error
	GetIngestRun(id string) (*core.IngestRun, error)
}

// Runner executes the ingest pipeline against a landing directory.
type Runner struct {
	settings core.IngestSettings
	store    RunStore
	logger   *slog.Logger
}

// NewRunner creates a pipeline runner. A nil logger discards all output.
func NewRunner(settings core.IngestSettings, store RunStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		settings: settings,
		store:    store,
		logger:   logger,
	}
}
