package core

import "time"

// Store defines the interface for ingest state management.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateIngestRun(landingDir string) (*IngestRun, error)
	GetIngestRun(id string) (*IngestRun, error)
	CompleteIngestRun(id string, status IngestRunStatus, counts IngestCounts, errMsg string) error
	ListIngestRuns(limit int) ([]*IngestRun, error)
	GetLatestIngestRun() (*IngestRun, error)

	// File operations
	RecordIngestFile(file *IngestFile) error
	ListIngestFiles(runID string) ([]*IngestFile, error)
}

// IngestRunStatus represents the status of an ingest pipeline run.
type IngestRunStatus string

// Ingest run status constants.
const (
	IngestRunStatusRunning   IngestRunStatus = "running"
	IngestRunStatusCompleted IngestRunStatus = "completed"
	IngestRunStatusFailed    IngestRunStatus = "failed"
)

// IngestCounts summarizes per-file outcomes of a run.
type IngestCounts struct {
	Ingested int
	Skipped  int
	Failed   int
}

// IngestRun represents one execution of the ingest pipeline.
type IngestRun struct {
	ID          string
	LandingDir  string
	Status      IngestRunStatus
	Counts      IngestCounts
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// FileStatus represents the outcome recorded for a single landing file.
type FileStatus string

// File status constants.
const (
	FileStatusIngested FileStatus = "ingested"
	FileStatusSkipped  FileStatus = "skipped"
	FileStatusFailed   FileStatus = "failed"
)

// IngestFile represents one landing file's outcome within a run.
type IngestFile struct {
	ID       int64
	RunID    string
	Name     string
	Size     int64
	Checksum string
	Status   FileStatus
	// Reason explains a skip or failure ("size mismatch ...", "not in manifest").
	Reason    string
	CreatedAt time.Time
}
