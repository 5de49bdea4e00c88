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

	"github.com/starford/scratch/internal/api"
	"github.com/starford/scratch/internal/backup"
	"github.com/starford/scratch/internal/inbox"
	"github.com/starford/scratch/internal/manager"
	"github.com/starford/scratch/internal/mcpserver"
	"github.com/starford/scratch/internal/saveas"
	"github.com/starford/scratch/internal/sse"
	"github.com/starford/scratch/internal/storage"
	"github.com/starford/scratch/internal/textmodel"
	"github.com/starford/scratch/internal/untitledservice"
	"github.com/starford/scratch/internal/workingcopy"
)

// core holds the components shared by the HTTP and MCP entry points.
type core struct {
	backups backup.Store
	mgr     *manager.Manager
	svc     *untitledservice.Service
}

// close disposes live copies, which flushes dirty backups, and then closes
// the backup store.
func (c *core) close(logger *slog.Logger) {
	c.mgr.Close()
	if err := c.backups.Close(); err != nil {
		logger.Warn("backup store close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// setup opens the vault and the backup store, builds the manager, and
// restores backed-up copies.
func (a *application) setup(ctx context.Context, logger *slog.Logger, cb manager.EventCallback) (*core, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	backups, err := backup.Open(cfg.Backup.Driver, cfg.Backup.Path)
	if err != nil {
		return nil, fmt.Errorf("init backups: %w", err)
	}

	mgrOpts := []manager.Option{
		manager.WithLogger(logger),
		manager.WithBackups(backups, cfg.Backup.Debounce),
	}
	if cb != nil {
		mgrOpts = append(mgrOpts, manager.WithEventCallback(cb))
	}
	mgr := manager.New(textmodel.NewFactory(cfg.Model.MaxBytes), mgrOpts...)

	restored, err := mgr.Restore(ctx)
	if err != nil {
		logger.Warn("restore incomplete", slog.String("error", err.Error()))
	}
	logger.Info("Untitled copies restored", slog.Int("count", restored))

	svc := untitledservice.NewService(mgr, saveas.New(vault, logger))
	return &core{backups: backups, mgr: mgr, svc: svc}, nil
}

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("backup_driver", cfg.Backup.Driver),
		slog.String("backup_path", cfg.Backup.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.App.EventThrottle)
	defer broker.Close()

	c, err := app.setup(ctx, logger, func(kind string, wc *workingcopy.Untitled) {
		broker.PublishUntitledEvent(kind, manager.Key(wc))
	})
	if err != nil {
		return err
	}
	defer c.close(logger)

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","untitled":%d}`, c.mgr.Len())
	})

	// Mount API routes under /api; SSE is served at /api/events.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Inbox watcher.
	if cfg.Inbox.Enabled {
		g.Go(func() error {
			return inbox.Watch(gCtx, cfg.Inbox.Path, c.mgr, logger, func(file, key string) {
				broker.Publish(sse.Event{
					Type: "inbox.imported",
					Data: map[string]string{"file": file, "key": key},
				})
			})
		})
	}

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := app.setup(ctx, logger, nil)
	if err != nil {
		return err
	}
	defer c.close(logger)

	logger.Info("MCP server starting on stdio")
	if err := mcpserver.New(c.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
