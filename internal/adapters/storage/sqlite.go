package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps it in process.
	Path string

	// OpTimeout bounds each statement. Set by Open from Config.OpTimeout.
	OpTimeout time.Duration
}

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS quiz_snapshots (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at DATETIME NOT NULL
);`

// SQLiteStore keeps each snapshot as a row in quiz_snapshots.
type SQLiteStore struct {
	db      *sql.DB
	timeout time.Duration
	now     func() time.Time
}

// NewSQLiteStore opens (or creates) the database and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; an in-memory database also only lives
	// as long as its one connection.
	db.SetMaxOpenConns(1)

	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}

	s := &SQLiteStore{db: db, timeout: timeout, now: time.Now}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := db.ExecContext(initCtx, snapshotSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Name implements ports.HealthChecker.
func (s *SQLiteStore) Name() string { return BackendSQLite }

// Check pings the database.
func (s *SQLiteStore) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(BackendSQLite, "ping", err)
	}

	return nil
}

// Load returns the row stored under key.
func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data []byte

	err := s.db.QueryRowContext(ctx, `SELECT data FROM quiz_snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("snapshot", key)
	}

	if err != nil {
		return nil, unavailable(BackendSQLite, "select", err)
	}

	return data, nil
}

// Save upserts the row for key.
func (s *SQLiteStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_snapshots (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, s.now().UTC(),
	)
	if err != nil {
		return unavailable(BackendSQLite, "upsert", err)
	}

	return nil
}

// Delete removes the row for key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM quiz_snapshots WHERE key = ?`, key); err != nil {
		return unavailable(BackendSQLite, "delete", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
