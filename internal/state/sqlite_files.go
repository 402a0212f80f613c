package state

import (
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/pkg/core"
)

// RecordIngestFile records one file's outcome within a run. The file's ID
// and CreatedAt are filled in on success.
func (s *SQLiteStore) RecordIngestFile(file *core.IngestFile) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	file.CreatedAt = time.Now().UTC()

	result, err := s.db.Exec(
		`INSERT INTO ingest_files (run_id, name, size, checksum, status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		file.RunID, file.Name, file.Size, file.Checksum, file.Status, file.Reason, file.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingest file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ingest file id: %w", err)
	}
	file.ID = id

	return nil
}

// ListIngestFiles retrieves the files recorded for a run in insertion order.
func (s *SQLiteStore) ListIngestFiles(runID string) ([]*core.IngestFile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, name, size, checksum, status, reason, created_at
		 FROM ingest_files WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest files: %w", err)
	}
	defer rows.Close()

	var files []*core.IngestFile
	for rows.Next() {
		file := &core.IngestFile{}
		err := rows.Scan(&file.ID, &file.RunID, &file.Name, &file.Size,
			&file.Checksum, &file.Status, &file.Reason, &file.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}
