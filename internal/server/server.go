// Package server exposes the loaded metric definitions over a small
// JSON API, with optional reload-on-change for local development.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/engine"
)

// Server serves the metrics API.
type Server struct {
	engine          *engine.Engine
	port            int
	watch           bool
	definitionsPath string
	macrosDir       string
	logger          *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Engine *engine.Engine
	Port   int
	// Watch reloads the definitions when files under DefinitionsPath or
	// MacrosDir change.
	Watch           bool
	DefinitionsPath string
	MacrosDir       string
	Logger          *slog.Logger
}

// New creates an API server. A nil logger discards all output.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		engine:          cfg.Engine,
		port:            cfg.Port,
		watch:           cfg.Watch,
		definitionsPath: cfg.DefinitionsPath,
		macrosDir:       cfg.MacrosDir,
		logger:          logger,
	}
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting metrics API", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.routes(r)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start file watcher if enabled
	if s.watch {
		eg.Go(func() error {
			return s.watchFiles(egctx)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down metrics API...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchFiles reloads the definitions when a source file changes.
func (s *Server) watchFiles(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, path := range []string{s.definitionsPath, s.macrosDir} {
		if path == "" {
			continue
		}
		if err := watchPath(watcher, path); err != nil {
			s.logger.Error("failed to watch path", "path", path, "error", err)
			// Keep serving without the watch
		}
	}

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if !reloadableFile(event.Name) {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("file changed, reloading definitions", "file", event.Name)

				result, err := s.engine.Load(engine.LoadOptions{})
				if err != nil {
					// The engine keeps the last good definitions.
					s.logger.Error("reload failed", "error", err)
					return
				}
				s.logger.Info("definitions reloaded", "metrics", result.MetricsTotal)
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

func reloadableFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yml", ".yaml", ".json", ".star":
		return true
	}
	return false
}

// watchPath adds a file or directory (recursively) to the watcher. A
// single file adds its parent directory so editors that save via rename
// still produce events.
func watchPath(watcher *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}
