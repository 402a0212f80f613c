package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry/pkg/core"
)

// Stage is one named step of the ingest pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, b *Batch) error
}

// Pipeline returns the stages in execution order.
func Pipeline() []Stage {
	return []Stage{
		{Name: "scan", Run: scan},
		{Name: "match", Run: match},
		{Name: "resolve", Run: resolve},
		{Name: "verify", Run: verify},
		{Name: "commit", Run: commit},
	}
}

// Batch carries the state threaded through the pipeline stages.
type Batch struct {
	Settings core.IngestSettings
	Manifest *Manifest
	Files    []*File
}

// Counts tallies the decided files. Files without a status are excluded.
func (b *Batch) Counts() core.IngestCounts {
	var c core.IngestCounts
	for _, f := range b.Files {
		switch f.Status {
		case core.FileStatusIngested:
			c.Ingested++
		case core.FileStatusSkipped:
			c.Skipped++
		case core.FileStatusFailed:
			c.Failed++
		}
	}
	return c
}

// File tracks one landing file across the stages.
type File struct {
	Name     string
	Path     string
	Size     int64
	Checksum string
	// Entry is the resolved manifest declaration, nil when no manifest is
	// configured.
	Entry *ManifestEntry
	// Status is empty while the file is still moving through the pipeline.
	Status core.FileStatus
	Reason string
}

func (f *File) fail(reason string) {
	f.Status = core.FileStatusFailed
	f.Reason = reason
}

func (f *File) pending() bool {
	return f.Status == ""
}

// Run executes the pipeline once and records the run and every decided file
// in the state store. A file-level failure does not stop the run; the
// remaining files are still attempted and the failures come back as one
// joined error. A stage-level failure aborts the run, and files that never
// reached a decision are not recorded.
func (r *Runner) Run(ctx context.Context) (*core.IngestRun, error) {
	run, err := r.store.CreateIngestRun(r.settings.LandingDir)
	if err != nil {
		return nil, fmt.Errorf("create ingest run: %w", err)
	}
	r.logger.Info("ingest started", "run_id", run.ID, "landing_dir", r.settings.LandingDir)

	b := &Batch{Settings: r.settings}
	var stageErr error
	for _, stage := range Pipeline() {
		start := time.Now()
		err := stage.Run(ctx, b)
		r.logger.Debug("ingest stage finished",
			"stage", stage.Name,
			"files", len(b.Files),
			"duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			stageErr = fmt.Errorf("%s: %w", stage.Name, err)
			break
		}
	}

	for _, f := range b.Files {
		if f.Status == "" {
			continue
		}
		_ = r.store.RecordIngestFile(&core.IngestFile{
			RunID:    run.ID,
			Name:     f.Name,
			Size:     f.Size,
			Checksum: f.Checksum,
			Status:   f.Status,
			Reason:   f.Reason,
		})
	}

	runErr := stageErr
	if runErr == nil {
		var fileErrs []error
		for _, f := range b.Files {
			if f.Status == core.FileStatusFailed {
				fileErrs = append(fileErrs, fmt.Errorf("%s: %s", f.Name, f.Reason))
			}
		}
		runErr = errors.Join(fileErrs...)
	}

	counts := b.Counts()
	status := core.IngestRunStatusCompleted
	errMsg := ""
	if runErr != nil {
		status = core.IngestRunStatusFailed
		errMsg = runErr.Error()
	}
	_ = r.store.CompleteIngestRun(run.ID, status, counts, errMsg)

	r.logger.Info("ingest finished",
		"run_id", run.ID,
		"status", string(status),
		"ingested", counts.Ingested,
		"skipped", counts.Skipped,
		"failed", counts.Failed)

	if updated, err := r.store.GetIngestRun(run.ID); err == nil && updated != nil {
		return updated, runErr
	}
	run.Status = status
	run.Counts = counts
	run.Error = errMsg
	return run, runErr
}

// DryRun executes the inspection stages and previews the commit decisions
// without touching the inbox, the landing files, or the state store. Files
// left pending in the returned batch are the ones a real run would promote;
// skipped and failed files carry the same reasons a real run would record.
func (r *Runner) DryRun(ctx context.Context) (*Batch, error) {
	r.logger.Info("ingest dry run", "landing_dir", r.settings.LandingDir)
	b := &Batch{Settings: r.settings}
	for _, stage := range Pipeline() {
		if stage.Name == "commit" {
			break
		}
		if err := stage.Run(ctx, b); err != nil {
			return b, fmt.Errorf("%s: %w", stage.Name, err)
		}
	}
	previewCommit(b)
	return b, nil
}
