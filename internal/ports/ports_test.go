package ports

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is a checker standing in for a snapshot backend.
type stubStore struct {
	name string
	err  error
}

func (s stubStore) Name() string { return s.name }

func (s stubStore) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.err
}

func TestHealthRegistry_RejectsDuplicateBackend(t *testing.T) {
	registry := NewHealthRegistry()

	require.NoError(t, registry.Register(stubStore{name: "sqlite"}))
	err := registry.Register(stubStore{name: "sqlite"})

	require.ErrorIs(t, err, ErrDuplicateChecker)
	assert.Contains(t, err.Error(), "sqlite")
	assert.Len(t, registry.CheckAll(context.Background()).Checks, 1)
}

func TestHealthRegistry_CheckAll(t *testing.T) {
	tests := []struct {
		name       string
		stores     []stubStore
		wantStatus HealthStatus
		wantMsgs   map[string]string
	}{
		{
			name:       "nothing registered",
			wantStatus: HealthStatusHealthy,
			wantMsgs:   map[string]string{},
		},
		{
			name:       "store reachable",
			stores:     []stubStore{{name: "redis"}},
			wantStatus: HealthStatusHealthy,
			wantMsgs:   map[string]string{"redis": ""},
		},
		{
			name: "store down",
			stores: []stubStore{
				{name: "redis", err: errors.New("dial tcp: connection refused")},
				{name: "otel"},
			},
			wantStatus: HealthStatusUnhealthy,
			wantMsgs: map[string]string{
				"redis": "dial tcp: connection refused",
				"otel":  "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewHealthRegistry()
			for _, s := range tt.stores {
				require.NoError(t, registry.Register(s))
			}

			result := registry.CheckAll(context.Background())

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.False(t, result.Timestamp.IsZero())
			require.Len(t, result.Checks, len(tt.wantMsgs))
			for name, msg := range tt.wantMsgs {
				assert.Equal(t, msg, result.Checks[name].Message, name)
			}
		})
	}
}

func TestHealthRegistry_CancelledProbe(t *testing.T) {
	registry := NewHealthRegistry()
	require.NoError(t, registry.Register(stubStore{name: "file"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := registry.CheckAll(ctx)

	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Checks["file"].Message, "context canceled")
}
