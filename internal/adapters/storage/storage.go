// Package storage provides SnapshotStore adapters for quiz progress.
//
// Every backend keeps exactly one opaque record per key and nothing else:
//   - memory: process-local map, lost on restart
//   - file: one JSON file per key, written atomically
//   - redis: one string value per key with an optional TTL
//   - sqlite: one row per key in a single table
//
// Remote backends are wrapped in a circuit breaker so an unreachable store
// fails fast instead of stalling every answer update.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// DefaultOpTimeout bounds a single store operation when none is configured.
const DefaultOpTimeout = 2 * time.Second

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Config selects and configures a snapshot backend.
type Config struct {
	// Backend is one of memory, file, redis or sqlite.
	Backend string

	// OpTimeout bounds each Load/Save/Delete call.
	OpTimeout time.Duration

	File   FileConfig
	Redis  RedisConfig
	SQLite SQLiteConfig

	// Breaker configures the circuit breaker around remote backends.
	// A zero MaxFailures disables the breaker.
	Breaker BreakerConfig

	Logger *slog.Logger
}

// Open builds the configured backend.
// Redis and SQLite backends are verified with a health check before returning.
func Open(ctx context.Context, cfg Config) (ports.SnapshotStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}

	var (
		store ports.SnapshotStore
		err   error
	)

	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		store, err = NewFileStore(cfg.File)
	case BackendRedis:
		cfg.Redis.OpTimeout = timeout
		store, err = NewRedisStore(ctx, cfg.Redis)
	case BackendSQLite:
		cfg.SQLite.OpTimeout = timeout
		store, err = NewSQLiteStore(ctx, cfg.SQLite)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Backend, err)
	}

	logger.Info("snapshot store opened", slog.String("backend", store.Name()))

	if cfg.Breaker.MaxFailures <= 0 {
		return store, nil
	}

	return NewBreakerStore(store, cfg.Breaker, logger), nil
}

// unavailable wraps a backend failure so callers can match domain.ErrUnavailable
// while the original cause stays reachable through errors.Is/As.
func unavailable(backend, op string, cause error) error {
	return fmt.Errorf("%w: %w", domain.NewUnavailableError(backend, op+" failed"), cause)
}
