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

	"github.com/starford/slideman/internal/api"
	"github.com/starford/slideman/internal/assembly"
	"github.com/starford/slideman/internal/convert"
	"github.com/starford/slideman/internal/keyword"
	"github.com/starford/slideman/internal/library"
	"github.com/starford/slideman/internal/mcpserver"
	"github.com/starford/slideman/internal/slidesvc"
	"github.com/starford/slideman/internal/sse"
	"github.com/starford/slideman/internal/store"
	"github.com/starford/slideman/internal/undo"
)

// runtime bundles the wired application components.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	db     *store.DB
	lib    library.Provider
	pool   *convert.Pool
	svc    *slidesvc.Service
}

// setup builds the component graph shared by all entry points. cb, when
// non-nil, receives conversion lifecycle events.
func setup(cfg *Config, cb convert.EventCallback) (*runtime, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	lib, err := library.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init library: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	pool := convert.NewPool(db, lib, cfg.Convert.Workers, logger, cb)
	history := undo.NewHistory(db, 100)
	merger := keyword.NewMerger(db, cfg.Merge.Threshold)
	exporter := assembly.NewExporter(db, lib)
	svc := slidesvc.NewService(db, lib, pool, history, merger, exporter)

	return &runtime{cfg: cfg, logger: logger, db: db, lib: lib, pool: pool, svc: svc}, nil
}

// Run starts the HTTP server, watcher, and SSE broker with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// SSE broker receives conversion events from the pool and watcher.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := setup(cfg, broker.PublishConvertEvent)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rt.logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Run initial sync.
	if err := rt.pool.Sync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Library.Path)

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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	rt.logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start library watcher.
	g.Go(func() error {
		if err := rt.pool.Watch(gCtx); err != nil {
			rt.logger.Error("watcher error", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		rt.logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			rt.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			rt.logger.Info("Context cancelled, initiating shutdown")
		}

		rt.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			rt.logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		rt.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	rt.logger.Info("Server stopped successfully")
	return nil
}

// RunMCP syncs the library and serves MCP tools over stdio.
func RunMCP(ctx context.Context, cfg *Config) error {
	rt, err := setup(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	if err := rt.pool.Sync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return mcpserver.New(rt.svc).ServeStdio()
}

// RunImport copies a .pptx into the named project (created on demand) and
// converts it.
func RunImport(ctx context.Context, cfg *Config, projectName, srcPath string) error {
	rt, err := setup(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	proj, err := rt.db.GetProjectByFolder(projectName)
	if err != nil {
		proj, err = rt.db.CreateProject(projectName, projectName)
		if err != nil {
			return err
		}
	}
	f, err := rt.svc.ImportFile(ctx, proj.ID, srcPath)
	if err != nil {
		return err
	}
	rt.logger.Info("imported",
		slog.String("path", f.RelPath),
		slog.Int("slides", f.SlideCount))
	return nil
}

// RunMerge reports fuzzy keyword merge candidates; with apply, it merges them.
func RunMerge(ctx context.Context, cfg *Config, apply bool) error {
	rt, err := setup(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	merger := keyword.NewMerger(rt.db, cfg.Merge.Threshold)
	cands, err := merger.Duplicates()
	if err != nil {
		return err
	}
	for _, c := range cands {
		rt.logger.Info("merge candidate",
			slog.String("winner", c.Winner),
			slog.String("loser", c.Loser),
			slog.String("kind", c.Kind),
			slog.Float64("similarity", c.Similarity))
	}
	if !apply {
		rt.logger.Info("dry run", slog.Int("candidates", len(cands)))
		return nil
	}
	n, err := merger.MergeAll(ctx, cands, rt.logger)
	if err != nil {
		return err
	}
	rt.logger.Info("merged", slog.Int("applied", n))
	return nil
}

// RunExport writes an assembly to a new .pptx under the exports directory.
func RunExport(ctx context.Context, cfg *Config, assemblyID int64) error {
	rt, err := setup(cfg, nil)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rel, err := rt.svc.ExportAssembly(ctx, assemblyID)
	if err != nil {
		return err
	}
	rt.logger.Info("exported", slog.String("path", rel))
	return nil
}
