// Package main is the entry point for the gallery quiz service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http"
	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/handlers"
	"github.com/jsamuelsen/gallery-quiz/internal/adapters/storage"
	"github.com/jsamuelsen/gallery-quiz/internal/app"
	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/config"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/telemetry"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Export .env into the environment; real variables win
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	// 2. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 3. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 4. Initialize logging
	logger := logging.New(loggingConfig(cfg))
	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.String("store", cfg.Store.Backend),
	)

	// 5. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		Attributes:   []attribute.KeyValue{attribute.String("quiz.store.backend", cfg.Store.Backend)},
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 6. Open the snapshot store
	store, err := storage.Open(ctx, storeConfig(cfg, logger))
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error("snapshot store close error", slog.Any("error", closeErr))
		}
	}()

	// 7. Create health registry; the store gates readiness
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(store); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	// 8. Prometheus registry for /-/metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := app.NewMetrics(promRegistry)

	// 9. Session registry and quiz service (application layer)
	registry := app.NewSessionRegistry(registryConfig(cfg, store, metrics, logger))
	registry.Start()

	quizService := app.NewQuizService(app.QuizServiceConfig{
		Registry: registry,
		QuoteOptions: domain.QuoteOptions{
			Recipient: cfg.Quiz.Quote.Recipient,
			Subject:   cfg.Quiz.Quote.Subject,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	// Sessions close before the store so final snapshot writes still land.
	defer func() {
		if closeErr := quizService.Close(); closeErr != nil && !errors.Is(closeErr, app.ErrRegistryClosed) {
			logger.Error("quiz service close error", slog.Any("error", closeErr))
		}
	}()

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo, handlers.WithGatherer(promRegistry))
	quizHandler := handlers.NewQuizHandler(quizService)

	// 11. Create HTTP server
	server := http.New(&cfg.Server, logger)

	// 12. Setup router with all middleware and routes
	routerCfg := http.NewDefaultRouterConfig(logger, &cfg.App, healthHandler, quizHandler)
	routerCfg.Timeout = cfg.Server.RequestTimeout
	http.SetupRouter(server.Engine(), routerCfg)

	// 13. Start server (non-blocking)
	serverErr := server.Start()

	// 14. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)
}

func loggingConfig(cfg *config.Config) *logging.Config {
	return &logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			Level:      cfg.Log.File.Level,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}
}

func storeConfig(cfg *config.Config, logger *slog.Logger) storage.Config {
	return storage.Config{
		Backend:   cfg.Store.Backend,
		OpTimeout: cfg.Store.OpTimeout,
		File:      storage.FileConfig{Dir: cfg.Store.File.Dir},
		Redis: storage.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			TTL:      cfg.Store.Redis.TTL,
		},
		SQLite: storage.SQLiteConfig{Path: cfg.Store.SQLite.Path},
		Breaker: storage.BreakerConfig{
			MaxFailures:   cfg.Store.Breaker.MaxFailures,
			Cooldown:      cfg.Store.Breaker.Cooldown,
			HalfOpenLimit: cfg.Store.Breaker.HalfOpenLimit,
		},
		Logger: logger,
	}
}

func registryConfig(
	cfg *config.Config,
	store ports.SnapshotStore,
	metrics *app.Metrics,
	logger *slog.Logger,
) app.RegistryConfig {
	return app.RegistryConfig{
		Store:           store,
		KeyPrefix:       cfg.Store.KeyPrefix,
		IdleTimeout:     cfg.Quiz.SessionIdleTimeout,
		JanitorInterval: cfg.Quiz.JanitorInterval,
		Timings: domain.Timings{
			SurgeDelay:         cfg.Quiz.Timings.SurgeDelay,
			ExitDuration:       cfg.Quiz.Timings.ExitDuration,
			EnterDuration:      cfg.Quiz.Timings.EnterDuration,
			ProcessingDuration: cfg.Quiz.Timings.ProcessingDuration,
		},
		Metrics: metrics,
		Logger:  logger,
	}
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
