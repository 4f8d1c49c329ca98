package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

// BreakerState is the position of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed lets every call through.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls until the cool-down elapses.
	BreakerOpen

	// BreakerHalfOpen lets a limited number of probe calls through.
	BreakerHalfOpen
)

// String returns a human-readable name for the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration

	// HalfOpenLimit is the number of consecutive probe successes that close
	// the circuit, and the number of probes allowed in flight.
	HalfOpenLimit int
}

// Breaker is a consecutive-failure circuit breaker.
//
// State transitions:
//   - Closed → Open: after MaxFailures consecutive failures
//   - Open → HalfOpen: once Cooldown has passed since the last failure
//   - HalfOpen → Closed: after HalfOpenLimit consecutive successes
//   - HalfOpen → Open: on any failure
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	cfg         BreakerConfig

	onChange func(from, to BreakerState)
	now      func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	return &Breaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers a callback invoked after every transition.
func (b *Breaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onChange = fn
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.cfg.Cooldown {
			return false
		}

		b.transitionLocked(BreakerHalfOpen)
		b.probes = 1

		return true

	case BreakerHalfOpen:
		if b.probes >= b.cfg.HalfOpenLimit {
			return false
		}

		b.probes++

		return true

	default:
		return false
	}
}

// Success records a call that reached the backend and succeeded.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0

	case BreakerHalfOpen:
		b.probes--
		b.successes++

		if b.successes >= b.cfg.HalfOpenLimit {
			b.transitionLocked(BreakerClosed)
		}

	case BreakerOpen:
	}
}

// Failure records a call that failed because the backend misbehaved.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case BreakerClosed:
		b.failures++

		if b.failures >= b.cfg.MaxFailures {
			b.transitionLocked(BreakerOpen)
		}

	case BreakerHalfOpen:
		b.probes--
		b.transitionLocked(BreakerOpen)

	case BreakerOpen:
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(to BreakerState) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0

	if to != BreakerHalfOpen {
		b.probes = 0
	}

	if b.onChange != nil {
		go b.onChange(from, to)
	}
}

// BreakerStore guards a SnapshotStore with a Breaker.
// NotFound results count as successes; only backend failures trip the circuit.
type BreakerStore struct {
	next    ports.SnapshotStore
	breaker *Breaker
}

// NewBreakerStore wraps next. State changes are logged at WARN.
func NewBreakerStore(next ports.SnapshotStore, cfg BreakerConfig, logger *slog.Logger) *BreakerStore {
	b := NewBreaker(cfg)

	if logger != nil {
		name := next.Name()
		b.OnStateChange(func(from, to BreakerState) {
			logger.Warn("snapshot store circuit changed",
				slog.String("backend", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
	}

	return &BreakerStore{next: next, breaker: b}
}

// Name returns the wrapped backend's name.
func (s *BreakerStore) Name() string { return s.next.Name() }

// Check reports an open circuit as unhealthy without touching the backend.
func (s *BreakerStore) Check(ctx context.Context) error {
	if s.breaker.State() == BreakerOpen {
		return s.rejected()
	}

	return s.next.Check(ctx)
}

// Load implements ports.SnapshotStore.
func (s *BreakerStore) Load(ctx context.Context, key string) ([]byte, error) {
	if !s.breaker.Allow() {
		return nil, s.rejected()
	}

	data, err := s.next.Load(ctx, key)
	s.record(err)

	return data, err
}

// Save implements ports.SnapshotStore.
func (s *BreakerStore) Save(ctx context.Context, key string, data []byte) error {
	if !s.breaker.Allow() {
		return s.rejected()
	}

	err := s.next.Save(ctx, key, data)
	s.record(err)

	return err
}

// Delete implements ports.SnapshotStore.
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	if !s.breaker.Allow() {
		return s.rejected()
	}

	err := s.next.Delete(ctx, key)
	s.record(err)

	return err
}

// Close closes the wrapped store.
func (s *BreakerStore) Close() error { return s.next.Close() }

// State exposes the breaker state for diagnostics.
func (s *BreakerStore) State() BreakerState { return s.breaker.State() }

func (s *BreakerStore) record(err error) {
	if err == nil || domain.IsNotFound(err) {
		s.breaker.Success()
		return
	}

	s.breaker.Failure()
}

func (s *BreakerStore) rejected() error {
	return domain.NewUnavailableError(s.next.Name(), "circuit open")
}
