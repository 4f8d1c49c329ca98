package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
	"github.com/jsamuelsen/gallery-quiz/internal/ports"
)

// DefaultKeyPrefix namespaces quiz snapshots in a shared store.
const DefaultKeyPrefix = "treed_quiz_progress"

// SnapshotKey returns the store key for a session.
func SnapshotKey(prefix, sessionID string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return prefix + ":" + sessionID
}

// RestoreOutcome describes what OpenAnswerStore found in the store.
type RestoreOutcome string

const (
	// RestoreRestored means a valid snapshot was loaded.
	RestoreRestored RestoreOutcome = "restored"

	// RestoreDefaulted means no snapshot could be read and defaults were used.
	RestoreDefaulted RestoreOutcome = "defaulted"

	// RestoreRejected means a snapshot existed but failed validation.
	RestoreRejected RestoreOutcome = "rejected"
)

// AnswerStore holds the answers of one session and mirrors every change to
// the snapshot store. Store failures never reach the caller.
type AnswerStore struct {
	mu      sync.Mutex
	answers domain.QuizAnswers

	store   ports.SnapshotStore
	key     string
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// AnswerStoreConfig contains the dependencies of an AnswerStore.
type AnswerStoreConfig struct {
	Store   ports.SnapshotStore
	Key     string
	Metrics *Metrics
	Logger  *slog.Logger
	Clock   func() time.Time
}

// OpenAnswerStore restores the snapshot stored under cfg.Key, falling back to
// the default answers when it is absent, unreadable or invalid. An invalid
// snapshot is deleted. loadErr is the store error that caused a fallback, if any.
func OpenAnswerStore(ctx context.Context, cfg AnswerStoreConfig) (s *AnswerStore, outcome RestoreOutcome, loadErr error) {
	if cfg.Store == nil {
		panic("app: AnswerStore requires a SnapshotStore")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s = &AnswerStore{
		answers: domain.DefaultAnswers(),
		store:   cfg.Store,
		key:     cfg.Key,
		metrics: cfg.Metrics,
		logger:  logger.With(slog.String("component", "app.AnswerStore")),
		now:     clock,
	}

	outcome, loadErr = s.restore(ctx)
	s.metrics.restored(outcome)

	return s, outcome, loadErr
}

func (s *AnswerStore) restore(ctx context.Context) (RestoreOutcome, error) {
	log := logging.FromContextOr(ctx, s.logger).With(slog.String("snapshot_key", s.key))

	data, err := s.store.Load(ctx, s.key)
	if err != nil {
		if domain.IsNotFound(err) {
			log.DebugContext(ctx, "no snapshot stored, using defaults")
		} else {
			log.WarnContext(ctx, "snapshot load failed, using defaults",
				slog.String("store", s.store.Name()),
				slog.Any("error", err),
			)
		}

		return RestoreDefaulted, err
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		log.WarnContext(ctx, "snapshot rejected, using defaults", slog.Any("error", err))

		if err := s.store.Delete(ctx, s.key); err != nil {
			log.WarnContext(ctx, "rejected snapshot not removed",
				slog.String("store", s.store.Name()),
				slog.Any("error", err),
			)
		}

		return RestoreRejected, nil
	}

	s.answers = snap.Answers
	log.DebugContext(ctx, "snapshot restored",
		slog.Int("version", snap.Version),
		slog.Bool("legacy", snap.Legacy),
	)

	return RestoreRestored, nil
}

// Get returns a copy of the current answers.
func (s *AnswerStore) Get() domain.QuizAnswers {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.answers.Clone()
}

// Update applies patch and persists the result.
// A rejected patch leaves the answers unchanged.
func (s *AnswerStore) Update(ctx context.Context, patch domain.AnswersPatch) (domain.QuizAnswers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := domain.ApplyPatch(s.answers, patch)
	if err != nil {
		return s.answers.Clone(), err
	}

	s.answers = next
	s.persistLocked(ctx)

	return next.Clone(), nil
}

// Toggle flips value in a multi-select field and persists the result.
func (s *AnswerStore) Toggle(ctx context.Context, field, value string) (domain.QuizAnswers, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed, err := domain.Toggle(s.answers, field, value)
	if err != nil || !changed {
		return s.answers.Clone(), changed, err
	}

	s.answers = next
	s.persistLocked(ctx)

	return next.Clone(), true, nil
}

// Reset restores the default answers and persists them.
func (s *AnswerStore) Reset(ctx context.Context) domain.QuizAnswers {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = domain.DefaultAnswers()
	s.persistLocked(ctx)

	return s.answers.Clone()
}

func (s *AnswerStore) persistLocked(ctx context.Context) {
	data, err := EncodeSnapshot(s.answers, s.now())
	if err == nil {
		err = s.store.Save(ctx, s.key, data)
	}

	if err != nil {
		s.metrics.writeFailed()
		logging.FromContextOr(ctx, s.logger).WarnContext(ctx, "snapshot write failed",
			slog.String("snapshot_key", s.key),
			slog.String("store", s.store.Name()),
			slog.Any("error", err),
		)
	}
}
