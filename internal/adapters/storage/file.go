package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

const (
	snapshotExt  = ".json"
	snapshotPerm = 0o600
	dirPerm      = 0o750
)

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir holds one file per snapshot key. Created if missing.
	Dir string
}

// FileStore keeps each snapshot in its own file under a directory.
// Writes go to a temp file that is renamed into place, so a crash never
// leaves a half-written snapshot behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file store directory is required")
	}

	if err := os.MkdirAll(cfg.Dir, dirPerm); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	return &FileStore{dir: cfg.Dir}, nil
}

// Name implements ports.HealthChecker.
func (s *FileStore) Name() string { return BackendFile }

// Check verifies the snapshot directory still exists.
func (s *FileStore) Check(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return unavailable(BackendFile, "stat", err)
	}

	if !info.IsDir() {
		return domain.NewUnavailableError(BackendFile, s.dir+" is not a directory")
	}

	return nil
}

// Load reads the snapshot file for key.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.NewNotFoundError("snapshot", key)
	}

	if err != nil {
		return nil, unavailable(BackendFile, "read", err)
	}

	return data, nil
}

// Save atomically replaces the snapshot file for key.
func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return unavailable(BackendFile, "create temp", err)
	}

	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return unavailable(BackendFile, "write", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return unavailable(BackendFile, "sync", err)
	}

	if err := tmp.Close(); err != nil {
		return unavailable(BackendFile, "close", err)
	}

	if err := os.Chmod(tmpName, snapshotPerm); err != nil {
		return unavailable(BackendFile, "chmod", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return unavailable(BackendFile, "rename", err)
	}

	return nil
}

// Delete removes the snapshot file for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return unavailable(BackendFile, "remove", err)
	}

	return nil
}

// Close implements ports.SnapshotStore.
func (s *FileStore) Close() error { return nil }

// path maps a key to a file name. Keys contain ':' which is not portable,
// so they are query-escaped.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+snapshotExt)
}
