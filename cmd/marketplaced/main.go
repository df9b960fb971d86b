package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/marketplace"
	audithook "github.com/xraph/marketplace/audit_hook"
	"github.com/xraph/marketplace/internal/config"
	"github.com/xraph/marketplace/observability"
	"github.com/xraph/marketplace/plugin"
	"github.com/xraph/marketplace/sink/mongoarchive"
	"github.com/xraph/marketplace/sink/redisstream"
	"github.com/xraph/marketplace/store"
	"github.com/xraph/marketplace/store/memory"
	"github.com/xraph/marketplace/store/postgres"
	"github.com/xraph/marketplace/store/sqlite"
	httpapi "github.com/xraph/marketplace/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("marketplace exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("marketplace shut down gracefully")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}

	plugins, err := buildPlugins(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return err
	}

	opts := []marketplace.Option{
		marketplace.WithLogger(logger),
		marketplace.WithRelayInterval(cfg.Engine.RelayInterval),
		marketplace.WithRelayBatchSize(cfg.Engine.RelayBatchSize),
		marketplace.WithRelayBackoff(cfg.Engine.RelayBackoff, cfg.Engine.RelayMaxBackoff),
		marketplace.WithMaxRelayAttempts(cfg.Engine.MaxRelayAttempts),
		marketplace.WithPluginTimeout(cfg.Engine.PluginTimeout),
	}
	if cfg.Policy != nil {
		opts = append(opts, marketplace.WithPolicy(*cfg.Policy))
	}
	for _, p := range plugins {
		opts = append(opts, marketplace.WithPlugin(p))
	}

	mp := marketplace.New(st, opts...)
	if err := mp.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}

	logger.Info("starting marketplace",
		"store", cfg.Store.Driver,
		"addr", cfg.Server.Addr,
		"plugins", mp.Plugins().Count(),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.New(mp, httpapi.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Stop after the server so in-flight requests can still commit.
		if err := mp.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("engine stop: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.URL)
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.URL)
	default:
		return memory.New(), nil
	}
}

func buildPlugins(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]plugin.Plugin, error) {
	var plugins []plugin.Plugin

	if cfg.Plugins.Audit {
		auditLog := logger.With("component", "audit")
		plugins = append(plugins, audithook.New(
			audithook.RecorderFunc(func(ctx context.Context, e *audithook.AuditEvent) error {
				auditLog.InfoContext(ctx, "audit",
					"action", e.Action,
					"resource", e.Resource,
					"resource_id", e.ResourceID,
					"actor", e.Actor,
					"category", e.Category,
					"severity", e.Severity,
				)
				return nil
			}),
			audithook.WithLogger(logger),
		))
	}

	if cfg.Plugins.Metrics {
		plugins = append(plugins, observability.NewMetricsExtension(
			observability.NewPrometheusFactory(prometheus.DefaultRegisterer),
		))
	}

	if cfg.Redis.URL != "" {
		sink, err := redisstream.Open(ctx, cfg.Redis.URL,
			redisstream.WithStream(cfg.Redis.Stream),
			redisstream.WithMaxLen(cfg.Redis.MaxLen),
			redisstream.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("redis sink: %w", err)
		}
		logger.Info("redis stream sink enabled", "stream", cfg.Redis.Stream)
		plugins = append(plugins, sink)
	}

	if cfg.Mongo.URI != "" {
		sink, err := mongoarchive.Open(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return nil, fmt.Errorf("mongo sink: %w", err)
		}
		logger.Info("mongo archive sink enabled",
			"database", cfg.Mongo.Database,
			"collection", cfg.Mongo.Collection,
		)
		plugins = append(plugins, sink)
	}

	return plugins, nil
}
