package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/engine"
	"github.com/quarrylabs/quarry/internal/server"
)

// ServeOptions holds the options for the serve command.
type ServeOptions struct {
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve [definitions-file]",
		Short: "Serve the metrics over a local JSON API",
		Long: `Start a local HTTP server exposing the loaded metric definitions.

Endpoints:
  GET /healthz                     server and definition status
  GET /api/metrics                 list the loaded metrics
  GET /api/metrics/{name}          one metric definition
  GET /api/metrics/{name}/sql      rendered SQL, with optional
                                   dimensions, filter, and dialect
                                   query parameters
  GET /api/dialects                registered dialect names

With --watch the definitions reload when their files change.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "port to serve on (default: 8787)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "reload definitions on file changes")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions, args []string) error {
	cmdCtx, cleanup, err := NewCommandContextAt(cmd, definitionsArg(args))
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// CLI flags override config file
	settings := cfg.GetServeSettings()
	port := settings.Port
	if opts.Port != 0 {
		port = opts.Port
	}
	watch := settings.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	// A server with nothing to serve is a configuration mistake, so the
	// initial load is strict. Watch-triggered reloads keep the last good
	// definitions instead.
	loadResult, err := cmdCtx.Engine.Load(engine.LoadOptions{})
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	srv := server.New(server.Config{
		Engine:          cmdCtx.Engine,
		Port:            port,
		Watch:           watch,
		DefinitionsPath: cfg.DefinitionsPath,
		MacrosDir:       cfg.MacrosDir,
		Logger:          cmdCtx.Logger,
	})

	r.Printf("Serving %d metrics on http://localhost:%d\n", loadResult.MetricsTotal, port)
	r.Muted("Press Ctrl+C to stop")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	return srv.Serve(ctx)
}
