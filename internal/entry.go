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
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/workspaces-mcp/internal/api"
	"github.com/starford/workspaces-mcp/internal/events"
	"github.com/starford/workspaces-mcp/internal/journal"
	"github.com/starford/workspaces-mcp/internal/mcpserver"
	"github.com/starford/workspaces-mcp/internal/repository"
	"github.com/starford/workspaces-mcp/internal/resource"
	"github.com/starford/workspaces-mcp/internal/service"
	"github.com/starford/workspaces-mcp/internal/sse"
	"github.com/starford/workspaces-mcp/internal/storage"
	"github.com/starford/workspaces-mcp/internal/tools"
	"github.com/starford/workspaces-mcp/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{
		version: "dev",
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// stdout carries the protocol in stdio mode.
	logOut := app.stdout
	if cfg.App.Transport == TransportStdio {
		logOut = app.stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("transport", cfg.App.Transport),
		slog.String("workspaces_root", cfg.Workspaces.Root),
		slog.Bool("journal", cfg.Journal.Enabled),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Workspaces.Root, 0o755); err != nil {
		return fmt.Errorf("create workspaces root: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspaces.Root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	bus := events.NewBus(logger)
	bus.Subscribe("log", events.LogSubscriber(logger))

	var db *journal.DB
	if cfg.Journal.Enabled {
		db, err = openJournal(ctx, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		bus.Subscribe("journal", db.Record)
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	bus.Subscribe("sse", broker.Handle)

	workspaces := service.NewWorkspaceService(repository.NewWorkspaceRepository(store, logger), bus, logger)
	instructions := service.NewInstructionsService(repository.NewInstructionsRepository(store, logger), bus, logger)
	resolver := resource.NewResolver(workspaces, instructions, logger)

	registry := tools.NewRegistry(bus, logger)
	if err := registry.Register(tools.Builtins(workspaces, instructions)...); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	// One lock for every adapter.
	mu := &sync.Mutex{}

	mcpSrv := mcpserver.New(resolver, registry, mu, logger, app.version)
	bus.Subscribe("mcp", mcpSrv.Notify)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := watch.Watch(gCtx, cfg.Workspaces.Root, bus, cfg.Watch.Debounce, logger); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	switch cfg.App.Transport {
	case TransportHTTP:
		deps := api.Deps{
			Workspaces:   workspaces,
			Instructions: instructions,
			Resolver:     resolver,
			Registry:     registry,
			Stream:       broker,
			Mu:           mu,
			Logger:       logger,
		}
		if db != nil {
			deps.Journal = db
		}
		httpServer := &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: newHTTPHandler(deps, mcpSrv, cfg.Auth.BearerToken()),
		}

		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return nil
		})

	default:
		g.Go(func() error {
			defer cancel()
			logger.Info("Serving MCP on stdio")
			err := mcpSrv.ServeStdio(gCtx, app.stdin, app.stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("stdio server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func openJournal(ctx context.Context, cfg JournalConfig, logger *slog.Logger) (*journal.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := journal.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}
	if cfg.Retention > 0 {
		n, err := db.Prune(ctx, time.Now().Add(-cfg.Retention))
		if err != nil {
			logger.Warn("journal prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("journal pruned", slog.Int64("events", n))
		}
	}
	return db, nil
}

// newHTTPHandler mounts health checks, the REST mirror under /api and the
// streamable MCP endpoint under /mcp.
func newHTTPHandler(deps api.Deps, mcpSrv *mcpserver.Server, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(deps, token))
	r.With(api.AuthMiddleware(token)).Handle("/mcp", mcpSrv.HTTPHandler())

	return r
}
