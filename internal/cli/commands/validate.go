package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/engine"
)

// ValidateOptions holds the options for the validate command.
type ValidateOptions struct {
	Format string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [definitions-file]",
		Short: "Check metric definitions without emitting SQL",
		Long: `Load every metric definition, then compile each one against the
configured dialect. Problems are reported per file with the metric name
and the reason, and the command exits non-zero when any are found.

Unlike render, validate keeps going after the first failure so a single
run reports everything that needs fixing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (text, markdown, json)")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, args []string) error {
	cmdCtx, cleanup, err := NewCommandContextAt(cmd, definitionsArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	loadResult, err := cmdCtx.Engine.Load(engine.LoadOptions{ContinueOnError: true})
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	// Compile every metric that loaded. Validation wants the full list of
	// failures, so the batch keeps going past the first bad metric.
	batch, err := compiler.RenderBatch(cmdCtx.Engine.Definitions(), compiler.BatchOptions{
		Dialect:         cmdCtx.Engine.Dialect(),
		ExpandFor:       cmdCtx.Engine.ExpandFor,
		ContinueOnError: true,
	})
	if err != nil {
		return err
	}

	out := buildValidateOutput(cmdCtx, loadResult, batch)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	case output.ModeMarkdown:
		renderValidateMarkdown(r, out)
	default:
		renderValidateText(r, cmdCtx, out)
	}

	if out.Summary.Errors > 0 {
		return fmt.Errorf("validation failed with %d error(s)", out.Summary.Errors)
	}
	return nil
}

// buildValidateOutput merges load diagnostics with compile failures,
// attributing each compile failure to the file its metric came from.
func buildValidateOutput(cmdCtx *CommandContext, loadResult *engine.LoadResult, batch *compiler.BatchResult) output.ValidateOutput {
	byPath := make(map[string]int)
	var files []output.FileValidation

	for _, fr := range loadResult.Files {
		byPath[fr.Path] = len(files)
		files = append(files, output.FileValidation{
			Path:    fr.Path,
			Metrics: fr.Metrics,
			Errors:  append([]string(nil), fr.Errors...),
		})
	}

	for _, f := range batch.Failed {
		path := cmdCtx.Engine.Origin(f.Metric)
		idx, ok := byPath[path]
		if !ok {
			byPath[path] = len(files)
			files = append(files, output.FileValidation{Path: path})
			idx = byPath[path]
		}
		files[idx].Errors = append(files[idx].Errors, fmt.Sprintf("%s: %v", f.Metric, f.Err))
	}

	errs := 0
	for _, fv := range files {
		errs += len(fv.Errors)
	}

	return output.ValidateOutput{
		Files: files,
		Summary: output.ValidateSummary{
			FilesChecked:  len(files),
			MetricsLoaded: loadResult.MetricsTotal,
			Errors:        errs,
		},
	}
}

func renderValidateText(r *output.Renderer, cmdCtx *CommandContext, out output.ValidateOutput) {
	r.Header(1, "Validation")
	r.Println("")

	if len(out.Files) == 0 {
		r.Muted("No definitions files found")
	}
	for _, fv := range out.Files {
		status := "success"
		detail := fmt.Sprintf("%d metric(s)", fv.Metrics)
		if len(fv.Errors) > 0 {
			status = "failed"
			detail = fmt.Sprintf("%d metric(s), %d error(s)", fv.Metrics, len(fv.Errors))
		}
		r.StatusLine(fv.Path, status, detail)
		for _, msg := range fv.Errors {
			r.Println("      " + r.Styles().Error.Render(msg))
		}
	}

	r.Println("")
	summary := fmt.Sprintf("%d file(s) checked, %d metric(s) loaded, dialect %s",
		out.Summary.FilesChecked, out.Summary.MetricsLoaded, cmdCtx.Engine.Dialect().Name)
	if out.Summary.Errors > 0 {
		r.Error(fmt.Sprintf("%s, %d error(s)", summary, out.Summary.Errors))
	} else {
		r.Success(summary)
	}
}

func renderValidateMarkdown(r *output.Renderer, out output.ValidateOutput) {
	r.Println(output.FormatHeader(1, "Validation"))
	r.Println("")
	for _, fv := range out.Files {
		marker := "[PASS]"
		if len(fv.Errors) > 0 {
			marker = "[FAIL]"
		}
		r.Println(fmt.Sprintf("- **%s** %s (%d metrics)", marker, fv.Path, fv.Metrics))
		for _, msg := range fv.Errors {
			r.Println("  - " + msg)
		}
	}
	r.Println("")
	r.Println(fmt.Sprintf("%d file(s) checked, %d metric(s) loaded, %d error(s)",
		out.Summary.FilesChecked, out.Summary.MetricsLoaded, out.Summary.Errors))
}
