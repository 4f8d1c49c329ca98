package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

const sessionEntity = "session"

// Registry defaults.
const (
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultJanitorInterval    = time.Minute
)

// ErrRegistryClosed is returned once the registry has shut down.
var ErrRegistryClosed = errors.New("session registry closed")

// Session is one visitor's run through the quiz. All operations on a session
// are serialized.
type Session struct {
	ID string

	mu      sync.Mutex
	answers *AnswerStore
	ctrl    *domain.Controller

	lastSeen atomic.Int64
}

func (s *Session) touch(t time.Time) {
	s.lastSeen.Store(t.UnixNano())
}

// SessionView is a point-in-time snapshot of a session for presentation.
type SessionView struct {
	ID         string                 `json:"id"`
	Transition domain.TransitionState `json:"transition"`
	StepInfo   domain.StepInfo        `json:"stepInfo"`
	CanAdvance bool                   `json:"canAdvance"`
	CanRetreat bool                   `json:"canRetreat"`
	Answers    domain.QuizAnswers     `json:"answers"`
}

// viewLocked builds the presentation snapshot. Callers hold s.mu.
func (s *Session) viewLocked() SessionView {
	st := s.ctrl.State()
	answers := s.answers.Get()
	ready := st.Phase == domain.PhaseIdle && !st.Finished

	return SessionView{
		ID:         s.ID,
		Transition: st,
		StepInfo:   domain.StepInfoFor(st.Step),
		CanAdvance: ready && domain.CanAdvance(st.Step, answers),
		CanRetreat: ready && st.Step > domain.FirstStep,
		Answers:    answers,
	}
}

// RegistryConfig configures a SessionRegistry.
type RegistryConfig struct {
	Store           ports.SnapshotStore
	KeyPrefix       string
	IdleTimeout     time.Duration
	JanitorInterval time.Duration
	// Timings are used as given. A zero value makes every transition
	// instant; the service passes the configured stock durations.
	Timings         domain.Timings
	Scheduler       domain.Scheduler
	Metrics         *Metrics
	Logger          *slog.Logger
	Clock           func() time.Time
}

// SessionRegistry owns the in-memory sessions and evicts idle ones.
type SessionRegistry struct {
	cfg    RegistryConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	started  bool
	closed   bool

	stop chan struct{}
	done chan struct{}
}

// NewSessionRegistry creates a registry. Call Start to run the janitor.
func NewSessionRegistry(cfg RegistryConfig) *SessionRegistry {
	if cfg.Store == nil {
		panic("app: SessionRegistry requires a SnapshotStore")
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSessionIdleTimeout
	}
	if cfg.JanitorInterval <= 0 {
		cfg.JanitorInterval = DefaultJanitorInterval
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = domain.SystemScheduler()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionRegistry{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "app.SessionRegistry")),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the idle-session janitor. It stops when Close is called.
func (r *SessionRegistry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.closed {
		return
	}
	r.started = true

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.cfg.JanitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					r.logger.Debug("evicted idle sessions", slog.Int("count", n))
				}
			}
		}
	}()
}

// Create starts a session with a fresh ID and default answers. The defaults
// are written immediately so the session can be resumed after eviction.
func (r *SessionRegistry) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()

	// A fresh ID has nothing stored, so a failed load cannot hide answers.
	answers, _, _ := OpenAnswerStore(ctx, r.answerStoreConfig(id))

	s, err := r.insert(id, answers)
	if err != nil {
		return nil, err
	}

	s.answers.Reset(ctx)

	logging.FromContextOr(ctx, r.logger).InfoContext(ctx, "session created", slog.String("session_id", id))

	return s, nil
}

// Open resumes the session with id, restoring its stored answers when a
// snapshot exists and starting from defaults otherwise. A store failure
// yields an UnavailableError so that later writes cannot overwrite the
// answers that could not be read.
func (r *SessionRegistry) Open(ctx context.Context, id string) (*Session, error) {
	if s, err := r.lookup(id); s != nil || err != nil {
		return s, err
	}

	return r.open(ctx, id)
}

// Get returns the session with id. Evicted sessions whose snapshot survives
// are restored on the first step; unknown IDs yield a NotFoundError.
func (r *SessionRegistry) Get(ctx context.Context, id string) (*Session, error) {
	if s, err := r.lookup(id); s != nil || err != nil {
		return s, err
	}

	answers, outcome, loadErr := OpenAnswerStore(ctx, r.answerStoreConfig(id))
	switch {
	case domain.IsNotFound(loadErr):
		return nil, domain.NewNotFoundError(sessionEntity, id)
	case loadErr != nil:
		return nil, domain.NewUnavailableError(r.cfg.Store.Name(), loadErr.Error())
	}

	logging.FromContextOr(ctx, r.logger).InfoContext(ctx, "session restored",
		slog.String("session_id", id),
		slog.String("outcome", string(outcome)),
	)

	return r.insert(id, answers)
}

// Len reports how many sessions are held in memory.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Sweep evicts sessions idle longer than the configured timeout and reports
// how many were removed. Their snapshots stay in the store.
func (r *SessionRegistry) Sweep() int {
	cutoff := r.cfg.Clock().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.lastSeen.Load() < cutoff.UnixNano() {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	r.cfg.Metrics.setActive(len(r.sessions))
	r.mu.Unlock()

	for _, s := range evicted {
		s.mu.Lock()
		_ = s.ctrl.Close()
		s.mu.Unlock()
	}

	return len(evicted)
}

// Close stops the janitor and closes every session controller.
func (r *SessionRegistry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	r.closed = true
	started := r.started
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.cfg.Metrics.setActive(0)
	r.mu.Unlock()

	close(r.stop)
	if started {
		<-r.done
	}

	for _, s := range sessions {
		s.mu.Lock()
		_ = s.ctrl.Close()
		s.mu.Unlock()
	}

	return nil
}

func (r *SessionRegistry) lookup(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}

	s.touch(r.cfg.Clock())

	return s, nil
}

func (r *SessionRegistry) open(ctx context.Context, id string) (*Session, error) {
	answers, outcome, loadErr := OpenAnswerStore(ctx, r.answerStoreConfig(id))
	if loadErr != nil && !domain.IsNotFound(loadErr) {
		return nil, domain.NewUnavailableError(r.cfg.Store.Name(), loadErr.Error())
	}

	logging.FromContextOr(ctx, r.logger).InfoContext(ctx, "session opened",
		slog.String("session_id", id),
		slog.String("outcome", string(outcome)),
	)

	return r.insert(id, answers)
}

// insert registers a new session unless a concurrent caller won the race.
func (r *SessionRegistry) insert(id string, answers *AnswerStore) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}

	if existing, ok := r.sessions[id]; ok {
		return existing, nil
	}

	s := &Session{ID: id, answers: answers}
	s.touch(r.cfg.Clock())
	s.ctrl = r.newController(s)

	r.sessions[id] = s
	r.cfg.Metrics.sessionStarted()
	r.cfg.Metrics.setActive(len(r.sessions))

	return s, nil
}

func (r *SessionRegistry) newController(s *Session) *domain.Controller {
	return domain.NewController(
		domain.WithScheduler(r.cfg.Scheduler),
		domain.WithTimings(r.cfg.Timings),
		domain.WithOnFinished(func() {
			rec := domain.Recommend(s.answers.Get())
			r.cfg.Metrics.completed(rec)
			r.logger.Info("quiz finished",
				slog.String("session_id", s.ID),
				slog.Any("recommendations", rec.Items),
			)
		}),
	)
}

func (r *SessionRegistry) answerStoreConfig(id string) AnswerStoreConfig {
	return AnswerStoreConfig{
		Store:   r.cfg.Store,
		Key:     SnapshotKey(r.cfg.KeyPrefix, id),
		Metrics: r.cfg.Metrics,
		Logger:  r.logger,
		Clock:   r.cfg.Clock,
	}
}
