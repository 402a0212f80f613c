package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/pkg/core"
)

// CreateIngestRun creates a new running ingest run.
func (s *SQLiteStore) CreateIngestRun(landingDir string) (*core.IngestRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.IngestRun{
		ID:         generateID(),
		LandingDir: landingDir,
		Status:     core.IngestRunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO ingest_runs (id, landing_dir, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.LandingDir, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest run: %w", err)
	}

	return run, nil
}

// GetIngestRun retrieves a run by ID.
func (s *SQLiteStore) GetIngestRun(id string) (*core.IngestRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.IngestRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, landing_dir, status, ingested, skipped, failed, started_at, completed_at, error
		 FROM ingest_runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.LandingDir, &run.Status,
		&run.Counts.Ingested, &run.Counts.Skipped, &run.Counts.Failed,
		&run.StartedAt, &completedAt, &errMsg)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ingest run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingest run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}

// CompleteIngestRun marks a run as finished with the given status and counts.
func (s *SQLiteStore) CompleteIngestRun(id string, status core.IngestRunStatus, counts core.IngestCounts, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE ingest_runs SET status = ?, ingested = ?, skipped = ?, failed = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, counts.Ingested, counts.Skipped, counts.Failed, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete ingest run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("ingest run not found: %s", id)
	}

	return nil
}

// ListIngestRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListIngestRuns(limit int) ([]*core.IngestRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, landing_dir, status, ingested, skipped, failed, started_at, completed_at, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.IngestRun
	for rows.Next() {
		run := &core.IngestRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(&run.ID, &run.LandingDir, &run.Status,
			&run.Counts.Ingested, &run.Counts.Skipped, &run.Counts.Failed,
			&run.StartedAt, &completedAt, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}

		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetLatestIngestRun retrieves the most recent run, or nil when no run has
// been recorded yet.
func (s *SQLiteStore) GetLatestIngestRun() (*core.IngestRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.IngestRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, landing_dir, status, ingested, skipped, failed, started_at, completed_at, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &run.LandingDir, &run.Status,
		&run.Counts.Ingested, &run.Counts.Skipped, &run.Counts.Failed,
		&run.StartedAt, &completedAt, &errMsg)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest ingest run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}
