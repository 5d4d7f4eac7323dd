// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mediafold/internal/api"
	"github.com/starford/mediafold/internal/index"
	"github.com/starford/mediafold/internal/maintenance"
	"github.com/starford/mediafold/internal/mcpserver"
	"github.com/starford/mediafold/internal/metrics"
)

// Run starts the HTTP server, the vault watcher and signal handling.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("blob_backend", cfg.Blobs.Backend),
		slog.Int64("blob_quota_bytes", cfg.Blobs.QuotaBytes),
		slog.Bool("autosave", cfg.Autosave.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("close failed", slog.String("error", err.Error()))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHTTPHandler(cfg, c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Vault watcher: keeps the index current and tells SSE clients.
	g.Go(func() error {
		w := index.NewWatcher(c.db, c.store, c.store.Root(), logger, func(kind, path string) {
			c.broker.PublishNoteEvent(kind, path, "")
		})
		if err := w.Run(gCtx); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been shut down, which
// stops the watcher.
var errShutdown = errors.New("shutdown")

// newHTTPHandler builds the root router: health checks, metrics and the API.
func newHTTPHandler(cfg *Config, c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "If-Match"},
			ExposedHeaders:   []string{"ETag"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.blobs.ListKeys(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"blob store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	var events http.Handler
	if c.broker != nil {
		events = c.broker
	}
	r.Mount("/api", api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events))
	return r
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := app.logger()

	c, err := build(ctx, app.config, logger, false)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("Serving MCP on stdio", slog.String("vault_path", app.config.Vault.Path))
	return mcpserver.New(c.svc).ServeStdio()
}

// CollectGarbage deletes blobs no vault document references. The index is
// synced from the vault first so the reference set is current.
func CollectGarbage(ctx context.Context, grace time.Duration, dryRun bool, opts ...Option) (maintenance.Report, error) {
	app := newApplication(opts)
	if app.config == nil {
		return maintenance.Report{}, fmt.Errorf("config is required")
	}
	logger := app.logger()

	c, err := build(ctx, app.config, logger, false)
	if err != nil {
		return maintenance.Report{}, err
	}
	defer c.Close()

	return maintenance.NewCollector(c.blobs, c.db, logger).CollectOrphans(ctx, grace, dryRun)
}

// Transform directions for Transform.
const (
	TransformExpand   = "expand"
	TransformCollapse = "collapse"
)

// Transform reads a document from in, expands or collapses it against the
// configured blob store and writes the result to out. A partial collapse
// still writes the text and returns the error.
func Transform(ctx context.Context, direction string, in io.Reader, out io.Writer, opts ...Option) error {
	app := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := app.logger()

	blobs, eng, err := openEngine(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer blobs.Close()

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	var (
		text    string
		convErr error
	)
	switch direction {
	case TransformExpand:
		text = eng.Expand(ctx, string(data))
	case TransformCollapse:
		text, convErr = eng.Collapse(ctx, string(data))
	default:
		return fmt.Errorf("unknown transform %q", direction)
	}
	if _, err := io.WriteString(out, text); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return convErr
}
