package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/quarrylabs/quarry/internal/cli/output"
	"github.com/quarrylabs/quarry/internal/compiler"
	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Metrics     []string
	Dimensions  []string
	Filters     []string
	Batch       bool
	Materialize string
	Out         string
	Watch       bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render [definitions-file]",
		Short: "Render metric definitions to SQL",
		Long: `Compile metric definitions into SELECT statements.

Each selected metric becomes one statement preceded by a "-- metric: <name>"
header line, with a blank line between statements. Without --metrics every
metric in the file is rendered in document order.

The first compile error aborts the render. Use --batch to attempt every
selected metric and report all failures at the end instead.`,
		Example: `  # Render every metric in the configured definitions path
  quarry render

  # Render specific metrics from a file
  quarry render metrics/sales.yml --metrics margin,order_count

  # Render for a specific dialect
  quarry render --dialect postgres

  # Add an ad-hoc dimension and filter to every statement
  quarry render --metrics margin --dimensions channel --filter "region = 'EU'"

  # Keep going after compile errors and report them all
  quarry render --batch

  # Write CREATE VIEW statements to a file
  quarry render --materialize view --out views.sql

  # Re-render whenever a definition or macro changes
  quarry render --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Metrics, "metrics", "m", nil, "Comma-separated list of metrics to render")
	cmd.Flags().StringSliceVar(&opts.Dimensions, "dimensions", nil, "Extra grouping columns applied to every metric")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "Extra filter applied to every metric (repeatable)")
	cmd.Flags().BoolVar(&opts.Batch, "batch", false, "Attempt every metric and report all failures")
	cmd.Flags().StringVar(&opts.Materialize, "materialize", "", "Wrap statements in DDL (supported: view)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the rendered SQL to a file instead of stdout")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Watch the definition sources and re-render on change")

	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions, args []string) error {
	cmdCtx, cleanup, err := NewCommandContextAt(cmd, definitionsArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	if opts.Watch {
		return watchRender(cmd, cmdCtx, opts)
	}

	if _, err := cmdCtx.Engine.Load(engine.LoadOptions{}); err != nil {
		return err
	}
	return renderOnce(cmdCtx, opts)
}

func renderOnce(cmdCtx *CommandContext, opts *RenderOptions) error {
	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	result, err := compiler.RenderBatch(eng.Definitions(), compiler.BatchOptions{
		Metrics:         opts.Metrics,
		Dimensions:      opts.Dimensions,
		ExtraFilters:    opts.Filters,
		Dialect:         eng.Dialect(),
		ExpandFor:       eng.ExpandFor,
		Materialize:     opts.Materialize,
		ContinueOnError: opts.Batch,
	})
	if err != nil {
		return err
	}

	mode := r.EffectiveMode()
	switch {
	case opts.Out != "":
		if err := os.WriteFile(opts.Out, []byte(result.SQL), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", opts.Out, err)
		}
		r.Success(fmt.Sprintf("Wrote %d statement(s) to %s", len(result.Compiled), opts.Out))
	case mode == output.ModeJSON:
		if err := r.JSON(buildRenderOutput(cmdCtx, result)); err != nil {
			return err
		}
	case mode == output.ModeMarkdown:
		renderMarkdown(r, eng, result)
	default:
		if result.SQL != "" {
			r.Printf("%s", result.SQL)
		}
	}

	if len(result.Failed) > 0 {
		if mode != output.ModeJSON {
			for _, f := range result.Failed {
				r.Error(fmt.Sprintf("%s: %v", f.Metric, f.Err))
			}
		}
		return fmt.Errorf("%d metric(s) failed to compile", len(result.Failed))
	}
	return nil
}

// buildRenderOutput assembles the JSON form, compiled and failed metrics
// together so a consumer sees the whole batch in one document.
func buildRenderOutput(cmdCtx *CommandContext, result *compiler.BatchResult) output.RenderOutput {
	out := output.RenderOutput{
		File:    cmdCtx.Cfg.DefinitionsPath,
		Dialect: cmdCtx.Engine.Dialect().Name,
	}
	for _, q := range result.Compiled {
		out.Metrics = append(out.Metrics, output.RenderedMetric{Name: q.Metric.Name, SQL: q.SQL})
	}
	for _, f := range result.Failed {
		out.Metrics = append(out.Metrics, output.RenderedMetric{Name: f.Metric, Error: f.Err.Error()})
	}
	return out
}

func renderMarkdown(r *output.Renderer, eng *engine.Engine, result *compiler.BatchResult) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Rendered SQL (%s)", eng.Dialect().Name)))
	r.Println("")
	for _, q := range result.Compiled {
		r.Println(output.FormatHeader(2, q.Metric.Name))
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", q.SQL))
		r.Println("")
	}
}

// watchRender renders once, then re-renders whenever a definition or macro
// file changes. A broken edit reports its error and keeps watching; the
// engine holds on to the last good definition set.
func watchRender(cmd *cobra.Command, cmdCtx *CommandContext, opts *RenderOptions) error {
	r := cmdCtx.Renderer

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchProjectPaths(watcher, cmdCtx.Cfg.DefinitionsPath, cmdCtx.Cfg.MacrosDir); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	render := func() {
		if _, err := cmdCtx.Engine.Load(engine.LoadOptions{}); err != nil {
			r.Error(err.Error())
			return
		}
		if err := renderOnce(cmdCtx, opts); err != nil {
			r.Error(err.Error())
		}
	}

	render()
	r.Muted("Watching for changes (Ctrl+C to stop)")

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isDefinitionSource(event.Name) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				r.Muted(fmt.Sprintf("Change detected: %s", filepath.Base(event.Name)))
				render()
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cmdCtx.Logger.Warn("watcher error", "error", err)
		}
	}
}

// watchProjectPaths registers the definition and macro sources with the
// watcher. A definitions file is watched through its parent directory, so
// editors that save via rename still produce events.
func watchProjectPaths(watcher *fsnotify.Watcher, definitionsPath, macrosDir string) error {
	info, err := os.Stat(definitionsPath)
	if err != nil {
		return fmt.Errorf("stat definitions path: %w", err)
	}
	root := definitionsPath
	if !info.IsDir() {
		root = filepath.Dir(definitionsPath)
	}
	if err := watchDirRecursive(watcher, root); err != nil {
		return err
	}
	if macrosDir != "" {
		if err := watchDirRecursive(watcher, macrosDir); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func watchDirRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func isDefinitionSource(path string) bool {
	switch filepath.Ext(path) {
	case ".yml", ".yaml", ".json", ".star":
		return true
	}
	return false
}
