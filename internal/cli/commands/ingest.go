package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/config"
	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/ingest"
	"github.com/quarrylabs/quarry/pkg/core"
)

// IngestOptions holds the options for the ingest command.
type IngestOptions struct {
	Landing         string
	Inbox           string
	Glob            string
	Manifest        string
	EnforceSize     bool
	EnforceChecksum bool
	DryRun          bool
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Promote files from the landing directory into the inbox",
		Long: `Run the ingest pipeline once: scan the landing directory, verify the
files against the manifest when one is configured, and promote the good
ones into the inbox. Every run and per-file decision is recorded in the
state database; inspect past runs with "quarry runs".

Flags override the ingest settings from quarry.yaml for this run only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Landing, "landing", "", "landing directory to scan")
	cmd.Flags().StringVar(&opts.Inbox, "inbox", "", "inbox directory to promote into")
	cmd.Flags().StringVar(&opts.Glob, "glob", "", "file name pattern to match")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "manifest file to verify against")
	cmd.Flags().BoolVar(&opts.EnforceSize, "enforce-size", false, "fail files whose size differs from the manifest")
	cmd.Flags().BoolVar(&opts.EnforceChecksum, "enforce-checksum", false, "fail files whose checksum differs from the manifest")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report decisions without moving files or recording state")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *IngestOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer

	// Flag values override the project settings for this run only. Unset
	// string flags are empty and unset bools are false, which is exactly
	// what the merge treats as "not overridden".
	settings := config.MergeIngestSettings(cmdCtx.Cfg.Ingest, &core.IngestSettings{
		LandingDir:      opts.Landing,
		InboxDir:        opts.Inbox,
		Glob:            opts.Glob,
		ManifestPath:    opts.Manifest,
		EnforceSize:     opts.EnforceSize,
		EnforceChecksum: opts.EnforceChecksum,
	})
	if settings.LandingDir == "" {
		return fmt.Errorf("no landing directory configured (set ingest.landing_dir in quarry.yaml or pass --landing)")
	}
	if settings.InboxDir == "" {
		return fmt.Errorf("no inbox directory configured (set ingest.inbox_dir in quarry.yaml or pass --inbox)")
	}

	if opts.DryRun {
		// A dry run records nothing, so the state store stays closed.
		runner := ingest.NewRunner(*settings, nil, cmdCtx.Logger)
		batch, err := runner.DryRun(cmd.Context())
		if err != nil {
			return err
		}
		return renderDryRun(r, settings, batch)
	}

	store, err := cmdCtx.Engine.Store()
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	runner := ingest.NewRunner(*settings, store, cmdCtx.Logger)

	var spin *output.Spinner
	if r.EffectiveMode() == output.ModeText {
		spin = r.NewSpinner("Ingesting from " + settings.LandingDir)
		spin.Start()
	}

	run, runErr := runner.Run(cmd.Context())
	if run == nil {
		if spin != nil {
			spin.Fail("Ingest failed")
		}
		return runErr
	}

	if spin != nil {
		msg := fmt.Sprintf("Run %s: %d ingested, %d skipped, %d failed",
			run.ID, run.Counts.Ingested, run.Counts.Skipped, run.Counts.Failed)
		if runErr != nil {
			spin.Fail(msg)
		} else {
			spin.Success(msg)
		}
	}

	files, err := store.ListIngestFiles(run.ID)
	if err != nil {
		cmdCtx.Logger.Warn("list ingest files", "run_id", run.ID, "error", err)
	}
	info := buildRunInfo(run, files)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(info); err != nil {
			return err
		}
	case output.ModeMarkdown:
		renderRunMarkdown(r, info)
	default:
		renderRunFiles(r, info)
	}

	if runErr != nil {
		if run.Counts.Failed > 0 {
			return fmt.Errorf("ingest run %s: %d file(s) failed", run.ID, run.Counts.Failed)
		}
		return runErr
	}
	return nil
}

func renderDryRun(r *output.Renderer, settings *core.IngestSettings, batch *ingest.Batch) error {
	counts := batch.Counts()
	wouldIngest := 0
	for _, f := range batch.Files {
		if f.Status == "" {
			wouldIngest++
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		info := output.RunInfo{
			Status:     "dry-run",
			LandingDir: settings.LandingDir,
			Ingested:   wouldIngest,
			Skipped:    counts.Skipped,
			Failed:     counts.Failed,
		}
		for _, f := range batch.Files {
			status := string(f.Status)
			if f.Status == "" {
				status = string(core.FileStatusIngested)
			}
			info.Files = append(info.Files, output.RunFileInfo{
				Name:     f.Name,
				Size:     f.Size,
				Checksum: f.Checksum,
				Status:   status,
				Reason:   f.Reason,
			})
		}
		if err := r.JSON(info); err != nil {
			return err
		}
	} else {
		r.Header(1, "Ingest dry run")
		r.Muted(fmt.Sprintf("landing: %s, inbox: %s", settings.LandingDir, settings.InboxDir))
		r.Println("")
		if len(batch.Files) == 0 {
			r.Muted("No files matched in the landing directory")
			return nil
		}
		for _, f := range batch.Files {
			switch f.Status {
			case core.FileStatusFailed:
				r.StatusLine(f.Name, "failed", f.Reason)
			case core.FileStatusSkipped:
				r.StatusLine(f.Name, "skipped", "would skip: "+f.Reason)
			default:
				r.StatusLine(f.Name, "success", fmt.Sprintf("would ingest (%d bytes)", f.Size))
			}
		}
		r.Println("")
		r.Printf("Would ingest %d, skip %d, fail %d\n", wouldIngest, counts.Skipped, counts.Failed)
	}

	if counts.Failed > 0 {
		return fmt.Errorf("dry run: %d file(s) would fail", counts.Failed)
	}
	return nil
}
