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
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vitae/internal/api"
	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/ledger"
	"github.com/starford/vitae/internal/locate"
	"github.com/starford/vitae/internal/mcpserver"
	"github.com/starford/vitae/internal/metrics"
	"github.com/starford/vitae/internal/profile"
	"github.com/starford/vitae/internal/profileservice"
	"github.com/starford/vitae/internal/sse"
	"github.com/starford/vitae/internal/storage"
	"github.com/starford/vitae/internal/toolchain"
	"github.com/starford/vitae/internal/watcher"
)

// stack is the wired application.
type stack struct {
	svc      *profileservice.Service
	builds   *buildcache.Cache
	broker   *sse.Broker
	db       *ledger.DB
	registry *prom.Registry
}

func (s *stack) close() {
	s.broker.Close()
	s.builds.Purge()
	_ = s.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger(defaultOut io.Writer) *slog.Logger {
	out := a.logOut
	if out == nil {
		out = defaultOut
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// wire builds every component from the configuration. Scratch directories
// orphaned by a previous process are swept before the stack is returned.
func (a *application) wire(ctx context.Context, logger *slog.Logger) (*stack, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Profiles.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create profiles dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Profiles.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := ledger.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init ledger: %w", err)
	}

	tc := toolchain.New(a.runner)
	cfg.Toolchain.Apply(tc)

	var rec metrics.Recorder = metrics.NoopRecorder{}
	var registry *prom.Registry
	if cfg.Metrics.Enabled {
		registry = prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(registry)
	}

	if err := os.MkdirAll(cfg.Cache.ScratchRoot, 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	builds := buildcache.New(tc, buildcache.Options{
		Capacity: cfg.Cache.BuildCapacity,
		Root:     cfg.Cache.ScratchRoot,
		Prefix:   cfg.Cache.ScratchPrefix,
		Timeout:  cfg.Toolchain.Timeout,
		Logger:   logger,
		Metrics:  rec,
	})
	if n, err := builds.Sweep(ctx); err != nil {
		logger.Warn("startup sweep failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("removed orphaned scratch directories", slog.Int("count", n))
	}

	broker := sse.NewBroker(time.Second)
	svc := profileservice.New(profileservice.Deps{
		Store:    store,
		Profiles: profile.NewCache(store, cfg.Cache.ProfileCapacity, logger),
		Builds:   builds,
		Mapper:   locate.New(builds, tc),
		Ledger:   db,
		Events:   broker,
		Logger:   logger,
	})

	return &stack{svc: svc, builds: builds, broker: broker, db: db, registry: registry}, nil
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handler builds the root chi router.
func (s *stack) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	if s.registry != nil {
		r.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}

	r.Mount("/api", api.NewRouter(s.svc, s.broker))
	return r
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("profiles_path", cfg.Profiles.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("compiler", cfg.Toolchain.Compile.String()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, err := app.wire(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: st.handler(),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the profile directory: invalidate parsed models and notify subscribers.
	g.Go(func() error {
		if err := watcher.Watch(gCtx, cfg.Profiles.Path, watcher.DefaultDebounce, logger, st.svc.FileChanged); err != nil {
			logger.Warn("profile watcher stopped", slog.String("error", err.Error()))
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

// errShutdown cancels the group so the watcher exits with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger(os.Stderr)
	slog.SetDefault(logger)

	st, err := app.wire(ctx, logger)
	if err != nil {
		return err
	}
	defer st.close()

	logger.Info("MCP server starting", slog.String("profiles_path", app.config.Profiles.Path))
	return mcpserver.New(st.svc).ServeStdio()
}
