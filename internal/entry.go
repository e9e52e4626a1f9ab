// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/docservice"
	"github.com/starford/raido/internal/editor"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/session"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/web"
	"github.com/starford/raido/internal/workspace"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	sessCfg, err := cfg.LanguageServer.SessionConfig()
	if err != nil {
		return fmt.Errorf("language server url: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("language_server", sessCfg.URL),
		slog.Int("documents", len(cfg.Workspace.Documents)),
		slog.String("journal_path", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Workspace storage is only needed for file-backed documents.
	var store storage.Provider
	if cfg.Workspace.Root != "" {
		fs, err := storage.NewFS(cfg.Workspace.Root)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		store = fs
	}

	docs, err := workspace.Load(cfg.Workspace.Documents, store)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	reg, err := registry.New(docs)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}

	// SSE broker doubles as the view's display surface.
	broker := sse.NewBroker()
	defer broker.Close()
	ed := editor.New(reg, broker)

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer db.Close()

	runner := session.NewRunner(sessCfg, reg,
		session.WithJournal(db),
		session.WithEvents(broker),
		session.WithLogger(logger))

	svc := docservice.NewService(ed, runner)
	auth := api.AuthMiddleware(cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		state := runner.Status().State
		status := http.StatusOK
		if state != "ready" {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"status":%q}`, state)
	})

	// Mount API routes under /api; SSE lives at /api/events.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	// MCP over streamable HTTP.
	r.Handle("/mcp", auth(mcpserver.New(svc, app.version).Handler()))

	// Browser view.
	r.Get("/", web.Handler().ServeHTTP)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch file-backed documents and flag on-disk changes in the view.
	if cfg.Workspace.HasFiles() {
		g.Go(func() error {
			return workspace.Watch(gCtx, store, cfg.Workspace.Documents, logger, broker.PublishStale)
		})
	}

	// Language server sessions.
	g.Go(func() error {
		if err := runner.Run(gCtx); err != nil {
			return fmt.Errorf("language server: %w", err)
		}
		return nil
	})

	// Start HTTP server.
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

		// Open event streams never go idle; end them before draining.
		broker.Close()

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

// errShutdown cancels the group so the session runner and watcher stop
// when a signal arrives.
var errShutdown = errors.New("shutdown requested")
