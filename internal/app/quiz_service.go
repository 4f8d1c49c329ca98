// Package app contains application services that orchestrate use cases.
// This is the application layer in Clean Architecture - it coordinates
// domain logic and infrastructure through ports.
//
// Application Layer Responsibilities:
//   - Orchestrate use cases (session lifecycle, answering, navigation, results)
//   - Coordinate between domain and infrastructure
//   - Handle cross-cutting concerns (logging, tracing, funnel metrics)
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters)
//   - Storage encodings of a backend (that's storage adapters)
//   - Quiz rules (that's the domain layer)
package app

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
)

const tracerName = "github.com/jsamuelsen/gallery-quiz/internal/app"

// Transition directions used in logs and metrics.
const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
)

// TransitionResult reports whether a navigation request was accepted.
type TransitionResult struct {
	Accepted bool        `json:"accepted"`
	State    SessionView `json:"state"`
}

// ToggleResult reports whether a toggle changed the answers.
type ToggleResult struct {
	Changed bool        `json:"changed"`
	State   SessionView `json:"state"`
}

// Results is what a finished session shows the visitor.
type Results struct {
	SessionID      string                `json:"sessionId"`
	Recommendation domain.Recommendation `json:"recommendation"`
	Profile        domain.Profile        `json:"profile"`
	QuoteLink      string                `json:"quoteLink"`
	Answers        domain.QuizAnswers    `json:"answers"`
}

// CatalogView bundles the step metadata with the option catalog.
type CatalogView struct {
	Steps   []domain.StepInfo `json:"steps"`
	Catalog domain.Catalog    `json:"catalog"`
}

// QuizService orchestrates quiz sessions.
// It depends on the session registry, which in turn depends on ports.
type QuizService struct {
	registry *SessionRegistry
	quote    domain.QuoteOptions
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// QuizServiceConfig contains configuration for the quiz service.
type QuizServiceConfig struct {
	Registry     *SessionRegistry
	QuoteOptions domain.QuoteOptions
	Metrics      *Metrics
	Logger       *slog.Logger
}

// NewQuizService creates a quiz service. It panics without a registry.
func NewQuizService(cfg QuizServiceConfig) *QuizService {
	if cfg.Registry == nil {
		panic("app: QuizService requires a SessionRegistry")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &QuizService{
		registry: cfg.Registry,
		quote:    cfg.QuoteOptions,
		metrics:  cfg.Metrics,
		logger:   logger.With(slog.String("component", "app.QuizService")),
		tracer:   otel.Tracer(tracerName),
	}
}

// Catalog returns the step metadata and option lists.
func (s *QuizService) Catalog() CatalogView {
	return CatalogView{
		Steps:   domain.Steps(),
		Catalog: domain.DefaultCatalog(),
	}
}

// StartSession creates a session with a new ID.
func (s *QuizService) StartSession(ctx context.Context) (view SessionView, err error) {
	ctx, span := s.tracer.Start(ctx, "QuizService.StartSession")
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Create(ctx)
	if err != nil {
		return SessionView{}, err
	}

	span.SetAttributes(attribute.String("quiz.session_id", sess.ID))
	s.log(ctx).InfoContext(ctx, "session started", slog.String("session_id", sess.ID))

	return s.view(sess), nil
}

// OpenSession resumes or creates the session with id.
func (s *QuizService) OpenSession(ctx context.Context, id string) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.OpenSession", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Open(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	return s.view(sess), nil
}

// State returns the current view of a session.
func (s *QuizService) State(ctx context.Context, id string) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.State", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	return s.view(sess), nil
}

// UpdateAnswers applies a typed patch to the session's answers.
func (s *QuizService) UpdateAnswers(ctx context.Context, id string, patch domain.AnswersPatch) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.UpdateAnswers", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err := sess.answers.Update(ctx, patch); err != nil {
		s.log(ctx).DebugContext(ctx, "answers patch rejected",
			slog.String("session_id", id),
			slog.Any("error", err),
		)
		return SessionView{}, err
	}

	return sess.viewLocked(), nil
}

// ToggleAnswer flips one option of a multi-select answer.
func (s *QuizService) ToggleAnswer(ctx context.Context, id, field, value string) (res ToggleResult, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.ToggleAnswer", id)
	defer func() { endSpan(span, err) }()

	span.SetAttributes(attribute.String("quiz.field", field))

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return ToggleResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	_, changed, err := sess.answers.Toggle(ctx, field, value)
	if err != nil {
		return ToggleResult{}, err
	}

	return ToggleResult{Changed: changed, State: sess.viewLocked()}, nil
}

// Advance requests the next step, or the results on the last step.
// A refused request is not an error; Accepted reports the outcome.
func (s *QuizService) Advance(ctx context.Context, id string) (res TransitionResult, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.Advance", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	from := sess.ctrl.State().Step
	accepted := sess.ctrl.Advance(sess.answers.Get())
	s.transitioned(ctx, span, id, DirectionForward, from, accepted)

	return TransitionResult{Accepted: accepted, State: sess.viewLocked()}, nil
}

// Retreat requests the previous step.
func (s *QuizService) Retreat(ctx context.Context, id string) (res TransitionResult, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.Retreat", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	from := sess.ctrl.State().Step
	accepted := sess.ctrl.Retreat()
	s.transitioned(ctx, span, id, DirectionBackward, from, accepted)

	return TransitionResult{Accepted: accepted, State: sess.viewLocked()}, nil
}

// Results returns the recommendations of a finished session.
// It returns a ConflictError while the quiz is still in progress.
func (s *QuizService) Results(ctx context.Context, id string) (res Results, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.Results", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return Results{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.ctrl.State().Finished {
		return Results{}, domain.NewConflictError(sessionEntity, "quiz not finished")
	}

	answers := sess.answers.Get()

	return Results{
		SessionID:      id,
		Recommendation: domain.Recommend(answers),
		Profile:        domain.BuildProfile(answers),
		QuoteLink:      domain.QuoteLink(answers, s.quote),
		Answers:        answers,
	}, nil
}

// Restart resets the answers and returns the session to the first step.
func (s *QuizService) Restart(ctx context.Context, id string) (view SessionView, err error) {
	ctx, span := s.startSpan(ctx, "QuizService.Restart", id)
	defer func() { endSpan(span, err) }()

	sess, err := s.registry.Get(ctx, id)
	if err != nil {
		return SessionView{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	_ = sess.ctrl.Close()
	sess.answers.Reset(ctx)
	sess.ctrl = s.registry.newController(sess)

	s.log(ctx).InfoContext(ctx, "session restarted", slog.String("session_id", id))

	return sess.viewLocked(), nil
}

// Close shuts down every session.
func (s *QuizService) Close() error {
	return s.registry.Close()
}

func (s *QuizService) view(sess *Session) SessionView {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return sess.viewLocked()
}

func (s *QuizService) transitioned(
	ctx context.Context,
	span trace.Span,
	id, direction string,
	from domain.Step,
	accepted bool,
) {
	s.metrics.transition(direction, accepted)
	span.SetAttributes(
		attribute.String("quiz.direction", direction),
		attribute.Int("quiz.step", int(from)),
		attribute.Bool("quiz.accepted", accepted),
	)

	s.log(ctx).DebugContext(ctx, "transition requested",
		slog.String("session_id", id),
		slog.String("direction", direction),
		slog.Int("step", int(from)),
		slog.Bool("accepted", accepted),
	)
}

func (s *QuizService) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("quiz.session_id", id)))
}

func (s *QuizService) log(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
