// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types or raw bytes, never infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrUnavailable)
//   - Keep interfaces small and focused
package ports

import (
	"context"
)

// SnapshotStore persists one opaque snapshot per key.
// The application layer owns the encoding; stores only move bytes.
//
// Example usage in application layer:
//
//	data, err := store.Load(ctx, "treed_quiz_progress:"+sessionID)
//	if domain.IsNotFound(err) {
//	    return domain.DefaultAnswers(), nil
//	}
type SnapshotStore interface {
	HealthChecker

	// Load returns the snapshot stored under key.
	// Returns domain.ErrNotFound if nothing is stored.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the snapshot stored under key.
	// Returns domain.ErrUnavailable if the backend is unreachable.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the snapshot stored under key. Snapshots that fail
	// validation on restore are deleted. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
