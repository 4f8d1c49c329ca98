package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/mocks"
)

func newTestRegistry(t *testing.T, store *memStore, clk *clock) (*SessionRegistry, *Metrics) {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	r := NewSessionRegistry(RegistryConfig{
		Store:       store,
		IdleTimeout: 10 * time.Minute,
		Timings:     fastTimings,
		Metrics:     metrics,
		Logger:      discardLogger(),
		Clock:       clk.Now,
	})
	t.Cleanup(func() { _ = r.Close() })

	return r, metrics
}

func TestNewSessionRegistry_PanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() {
		NewSessionRegistry(RegistryConfig{})
	})
}

func TestSessionRegistry_CreatePersistsDefaults(t *testing.T) {
	store := newMemStore()
	r, metrics := newTestRegistry(t, store, newClock())

	s, err := r.Create(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	data, ok := store.get(SnapshotKey(DefaultKeyPrefix, s.ID))
	require.True(t, ok)
	snap, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAnswers(), snap.Answers)

	assert.Equal(t, 1, r.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SessionsStarted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ActiveSessions), 0)
}

func TestSessionRegistry_OpenRestoresSnapshot(t *testing.T) {
	store := newMemStore()
	data, err := EncodeSnapshot(sampleAnswers(), time.Now())
	require.NoError(t, err)
	store.put(SnapshotKey(DefaultKeyPrefix, "visitor-1"), string(data))

	r, _ := newTestRegistry(t, store, newClock())

	s, err := r.Open(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, sampleAnswers(), s.answers.Get())

	again, err := r.Open(context.Background(), "visitor-1")
	require.NoError(t, err)
	assert.Same(t, s, again)
}

func TestSessionRegistry_OpenUnknownStartsFresh(t *testing.T) {
	r, _ := newTestRegistry(t, newMemStore(), newClock())

	s, err := r.Open(context.Background(), "visitor-2")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAnswers(), s.answers.Get())
}

func TestSessionRegistry_GetUnknown(t *testing.T) {
	r, _ := newTestRegistry(t, newMemStore(), newClock())

	_, err := r.Get(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestSessionRegistry_GetWithStoreDown(t *testing.T) {
	store := mocks.NewMockSnapshotStore(t)
	store.EXPECT().Load(mock.Anything, mock.Anything).Return(nil, domain.NewUnavailableError("redis", "timeout"))
	store.EXPECT().Name().Return("redis")

	r := NewSessionRegistry(RegistryConfig{Store: store, Logger: discardLogger()})
	t.Cleanup(func() { _ = r.Close() })

	_, err := r.Get(context.Background(), "visitor")

	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
}

func TestSessionRegistry_OpenWithStoreDown(t *testing.T) {
	store := mocks.NewMockSnapshotStore(t)
	store.EXPECT().Load(mock.Anything, mock.Anything).Return(nil, domain.NewUnavailableError("redis", "timeout"))
	store.EXPECT().Name().Return("redis")

	r := NewSessionRegistry(RegistryConfig{Store: store, Logger: discardLogger()})
	t.Cleanup(func() { _ = r.Close() })

	s, err := r.Open(context.Background(), "visitor")

	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Nil(t, s)
	assert.Zero(t, r.Len())
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionRegistry_OpenRetriesAfterStoreRecovers(t *testing.T) {
	store := newMemStore()
	key := SnapshotKey(DefaultKeyPrefix, "visitor-3")
	data, err := EncodeSnapshot(sampleAnswers(), time.Now())
	require.NoError(t, err)
	store.put(key, string(data))

	r, _ := newTestRegistry(t, store, newClock())
	ctx := context.Background()

	store.failNextLoad(domain.NewUnavailableError("test", "connection reset"))
	_, err = r.Open(ctx, "visitor-3")
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))

	stored, ok := store.get(key)
	require.True(t, ok)
	assert.Equal(t, data, stored, "the snapshot must survive a failed open")

	s, err := r.Open(ctx, "visitor-3")
	require.NoError(t, err)
	assert.Equal(t, sampleAnswers(), s.answers.Get())
}

func TestSessionRegistry_OpenDiscardsRejectedSnapshot(t *testing.T) {
	store := newMemStore()
	key := SnapshotKey(DefaultKeyPrefix, "visitor-4")
	store.put(key, `{"version":1,"answers":{"languages":["Elvish"]}}`)

	r, _ := newTestRegistry(t, store, newClock())

	s, err := r.Open(context.Background(), "visitor-4")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAnswers(), s.answers.Get())

	_, ok := store.get(key)
	assert.False(t, ok)
}

func TestSessionRegistry_CreateIgnoresStoreOutage(t *testing.T) {
	store := newMemStore()
	r, _ := newTestRegistry(t, store, newClock())

	store.failNextLoad(domain.NewUnavailableError("test", "timeout"))
	s, err := r.Create(context.Background())
	require.NoError(t, err)

	_, ok := store.get(SnapshotKey(DefaultKeyPrefix, s.ID))
	assert.True(t, ok, "defaults are written for a new session")
}

func TestSessionRegistry_ZeroTimingsAreKept(t *testing.T) {
	r := NewSessionRegistry(RegistryConfig{Store: newMemStore(), Logger: discardLogger()})
	t.Cleanup(func() { _ = r.Close() })

	assert.Equal(t, domain.Timings{}, r.cfg.Timings)
}

func TestSessionRegistry_SweepEvictsIdleSessions(t *testing.T) {
	store := newMemStore()
	clk := newClock()
	r, metrics := newTestRegistry(t, store, clk)
	ctx := context.Background()

	idle, err := r.Create(ctx)
	require.NoError(t, err)

	visitors := 900
	_, err = idle.answers.Update(ctx, domain.AnswersPatch{AnnualVisitors: &visitors})
	require.NoError(t, err)

	clk.Add(6 * time.Minute)
	busy, err := r.Create(ctx)
	require.NoError(t, err)

	clk.Add(5 * time.Minute)
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ActiveSessions), 0)

	_, err = r.Get(ctx, busy.ID)
	require.NoError(t, err)

	restored, err := r.Get(ctx, idle.ID)
	require.NoError(t, err)
	assert.NotSame(t, idle, restored)
	assert.Equal(t, 900, restored.answers.Get().AnnualVisitors)
	assert.Equal(t, domain.FirstStep, restored.ctrl.State().Step)
}

func TestSessionRegistry_LookupRefreshesIdleTimer(t *testing.T) {
	clk := newClock()
	r, _ := newTestRegistry(t, newMemStore(), clk)
	ctx := context.Background()

	s, err := r.Create(ctx)
	require.NoError(t, err)

	clk.Add(9 * time.Minute)
	_, err = r.Get(ctx, s.ID)
	require.NoError(t, err)

	clk.Add(9 * time.Minute)
	assert.Zero(t, r.Sweep())
}

func TestSessionRegistry_Close(t *testing.T) {
	r := NewSessionRegistry(RegistryConfig{
		Store:           newMemStore(),
		JanitorInterval: time.Millisecond,
		Logger:          discardLogger(),
	})
	r.Start()

	_, err := r.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.ErrorIs(t, r.Close(), ErrRegistryClosed)

	_, err = r.Create(context.Background())
	require.ErrorIs(t, err, ErrRegistryClosed)
	_, err = r.Get(context.Background(), "any")
	require.ErrorIs(t, err, ErrRegistryClosed)
}
