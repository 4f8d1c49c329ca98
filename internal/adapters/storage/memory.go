package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

// MemoryStore keeps snapshots in a process-local map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Name implements ports.HealthChecker.
func (s *MemoryStore) Name() string { return BackendMemory }

// Check implements ports.HealthChecker. Memory is always healthy.
func (s *MemoryStore) Check(context.Context) error { return nil }

// Load returns a copy of the snapshot stored under key.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[key]
	if !ok {
		return nil, domain.NewNotFoundError("snapshot", key)
	}

	return bytes.Clone(data), nil
}

// Save stores a copy of data under key.
func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = bytes.Clone(data)

	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)

	return nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// Close implements ports.SnapshotStore.
func (s *MemoryStore) Close() error { return nil }
