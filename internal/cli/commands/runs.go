package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/pkg/core"
)

// RunsOptions holds the options for the runs command.
type RunsOptions struct {
	Limit  int
	Format string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded ingest runs",
		Long: `List the ingest runs recorded in the state database, most recent
first. Pass a run id to see the per-file decisions of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRun(cmd, opts, args[0])
			}
			return listRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs to list")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (text, markdown, json)")

	return cmd
}

func listRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	store, err := cmdCtx.Engine.Store()
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	runs, err := store.ListIngestRuns(opts.Limit)
	if err != nil {
		return fmt.Errorf("list ingest runs: %w", err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := output.RunsOutput{Runs: []output.RunInfo{}}
		for _, run := range runs {
			out.Runs = append(out.Runs, buildRunInfo(run, nil))
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Ingest runs"))
		r.Println("")
		if len(runs) == 0 {
			r.Println("No runs recorded.")
			return nil
		}
		r.Println("| ID | Status | Ingested | Skipped | Failed | Started |")
		r.Println("|----|--------|----------|---------|--------|---------|")
		for _, run := range runs {
			r.Println(fmt.Sprintf("| %s | %s | %d | %d | %d | %s |",
				run.ID, run.Status, run.Counts.Ingested, run.Counts.Skipped,
				run.Counts.Failed, run.StartedAt.Format("2006-01-02 15:04:05")))
		}
		return nil
	default:
		r.Header(1, "Ingest runs")
		r.Println("")
		if len(runs) == 0 {
			r.Muted("No runs recorded")
			return nil
		}
		t := table.NewWriter()
		t.SetOutputMirror(r.Writer())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Status", "Ingested", "Skipped", "Failed", "Started"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.ID,
				string(run.Status),
				run.Counts.Ingested,
				run.Counts.Skipped,
				run.Counts.Failed,
				run.StartedAt.Format("2006-01-02 15:04:05"),
			})
		}
		t.Render()
		r.Muted(fmt.Sprintf("(%d runs)", len(runs)))
		return nil
	}
}

func showRun(cmd *cobra.Command, opts *RunsOptions, id string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	store, err := cmdCtx.Engine.Store()
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	run, err := store.GetIngestRun(id)
	if err != nil {
		return fmt.Errorf("get ingest run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("run %q not found", id)
	}

	files, err := store.ListIngestFiles(run.ID)
	if err != nil {
		return fmt.Errorf("list ingest files: %w", err)
	}
	info := buildRunInfo(run, files)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(info)
	case output.ModeMarkdown:
		renderRunMarkdown(r, info)
		return nil
	default:
		renderRunDetail(r, info)
		return nil
	}
}

// buildRunInfo maps a recorded run and its file decisions onto the output
// form shared by the ingest and runs commands.
func buildRunInfo(run *core.IngestRun, files []*core.IngestFile) output.RunInfo {
	info := output.RunInfo{
		ID:         run.ID,
		Status:     string(run.Status),
		LandingDir: run.LandingDir,
		Ingested:   run.Counts.Ingested,
		Skipped:    run.Counts.Skipped,
		Failed:     run.Counts.Failed,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	if run.Error != "" {
		msg := run.Error
		info.Error = &msg
	}
	for _, f := range files {
		info.Files = append(info.Files, output.RunFileInfo{
			Name:     f.Name,
			Size:     f.Size,
			Checksum: f.Checksum,
			Status:   string(f.Status),
			Reason:   f.Reason,
		})
	}
	return info
}

func renderRunDetail(r *output.Renderer, info output.RunInfo) {
	r.Header(1, "Run "+info.ID)
	r.Muted(fmt.Sprintf("status: %s, landing: %s", info.Status, info.LandingDir))
	r.Muted("started: " + info.StartedAt)
	if info.CompletedAt != "" {
		r.Muted("completed: " + info.CompletedAt)
	}
	if info.Error != nil {
		r.Error(*info.Error)
	}
	r.Println("")
	renderRunFiles(r, info)
}

// renderRunFiles prints the per-file decisions followed by the counts.
// The ingest command shares this for its post-run report.
func renderRunFiles(r *output.Renderer, info output.RunInfo) {
	for _, f := range info.Files {
		detail := f.Reason
		if f.Status == string(core.FileStatusIngested) {
			detail = fmt.Sprintf("%d bytes", f.Size)
		}
		r.StatusLine(f.Name, fileStatusGlyph(f.Status), detail)
	}
	if len(info.Files) > 0 {
		r.Println("")
	}
	r.Printf("%d ingested, %d skipped, %d failed\n", info.Ingested, info.Skipped, info.Failed)
}

func renderRunMarkdown(r *output.Renderer, info output.RunInfo) {
	title := "Ingest run"
	if info.ID != "" {
		title = "Ingest run " + info.ID
	}
	r.Println(output.FormatHeader(1, title))
	r.Println("")
	r.Println(output.FormatKeyValue("Status", info.Status))
	r.Println(output.FormatKeyValue("Landing", info.LandingDir))
	r.Println(output.FormatKeyValue("Started", info.StartedAt))
	if info.CompletedAt != "" {
		r.Println(output.FormatKeyValue("Completed", info.CompletedAt))
	}
	if info.Error != nil {
		r.Println(output.FormatKeyValue("Error", *info.Error))
	}
	r.Println("")
	for _, f := range info.Files {
		line := fmt.Sprintf("- `%s` %s", f.Name, f.Status)
		if f.Reason != "" {
			line += ": " + f.Reason
		}
		r.Println(line)
	}
	r.Println("")
	r.Println(fmt.Sprintf("%d ingested, %d skipped, %d failed", info.Ingested, info.Skipped, info.Failed))
}

// fileStatusGlyph maps a stored file status onto the renderer's status
// line vocabulary.
func fileStatusGlyph(status string) string {
	switch status {
	case string(core.FileStatusIngested):
		return "success"
	case string(core.FileStatusSkipped):
		return "skipped"
	default:
		return "failed"
	}
}
