package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

func newTestService(t *testing.T) (*QuizService, *Metrics) {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	registry := NewSessionRegistry(RegistryConfig{
		Store:   newMemStore(),
		Timings: fastTimings,
		Metrics: metrics,
		Logger:  discardLogger(),
	})

	svc := NewQuizService(QuizServiceConfig{
		Registry: registry,
		Metrics:  metrics,
		Logger:   discardLogger(),
	})
	t.Cleanup(func() { _ = svc.Close() })

	return svc, metrics
}

// stepPatches answer exactly what each step requires.
var stepPatches = map[domain.Step]domain.AnswersPatch{
	1: {
		Usage:           &[]string{"Own gallery"},
		ChargeAdmission: ptrTo(domain.Yes),
		AdmissionFee:    ptrTo(10.0),
		AnnualVisitors:  ptrTo(5000),
	},
	2: {Products: &[]string{"AI-only handset"}},
	3: {DeviceCounts: &map[string]int{"AI-only handset": 20}},
	4: {Languages: &[]string{"English", "French", "German"}},
	5: {PointsOfInterest: ptrTo("30+"), UpdateFrequency: ptrTo("Monthly")},
	6: {WifiStable: ptrTo(domain.Yes), PowerStable: ptrTo(domain.Yes)},
	7: {Objectives: &[]string{"Increase engagement"}, CommercialStructure: ptrTo("Leasing")},
}

func ptrTo[T any](v T) *T {
	return &v
}

func waitIdle(t *testing.T, svc *QuizService, id string) SessionView {
	t.Helper()

	var view SessionView
	require.Eventually(t, func() bool {
		v, err := svc.State(context.Background(), id)
		if err != nil {
			return false
		}
		view = v
		return v.Transition.Phase == domain.PhaseIdle || v.Transition.Finished
	}, time.Second, time.Millisecond)

	return view
}

func TestNewQuizService_PanicsWithoutRegistry(t *testing.T) {
	assert.Panics(t, func() {
		NewQuizService(QuizServiceConfig{Logger: discardLogger()})
	})
}

func TestQuizService_Catalog(t *testing.T) {
	svc, _ := newTestService(t)

	c := svc.Catalog()

	assert.Len(t, c.Steps, 7)
	assert.Equal(t, domain.DefaultCatalog(), c.Catalog)
}

func TestQuizService_StartSession(t *testing.T) {
	svc, _ := newTestService(t)

	view, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, domain.FirstStep, view.Transition.Step)
	assert.Equal(t, "Gallery Context", view.StepInfo.Title)
	assert.True(t, view.Transition.ProgressVisible)
	assert.False(t, view.CanAdvance)
	assert.False(t, view.CanRetreat)
}

func TestQuizService_UnknownSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.State(ctx, "nope")
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.Advance(ctx, "nope")
	assert.True(t, domain.IsNotFound(err))

	_, err = svc.Results(ctx, "nope")
	assert.True(t, domain.IsNotFound(err))
}

func TestQuizService_AdvanceRefusedWithoutAnswers(t *testing.T) {
	svc, metrics := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)

	res, err := svc.Advance(ctx, view.ID)
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.Equal(t, domain.PhaseIdle, res.State.Transition.Phase)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Transitions.WithLabelValues(DirectionForward, "false")), 0)
}

func TestQuizService_UpdateAnswersRejectsInvalidPatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)

	_, err = svc.UpdateAnswers(ctx, view.ID, domain.AnswersPatch{AnnualVisitors: ptrTo(-3)})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestQuizService_ToggleAnswer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)

	res, err := svc.ToggleAnswer(ctx, view.ID, domain.FieldUsage, "Exhibitions/fairs")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, []string{"Exhibitions/fairs"}, res.State.Answers.Usage)

	_, err = svc.ToggleAnswer(ctx, view.ID, domain.FieldCurrency, "EUR")
	assert.True(t, domain.IsValidation(err))
}

func TestQuizService_FullRun(t *testing.T) {
	svc, metrics := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)
	id := view.ID

	_, err = svc.Results(ctx, id)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	for step := domain.FirstStep; step <= domain.LastStep; step++ {
		view, err = svc.UpdateAnswers(ctx, id, stepPatches[step])
		require.NoError(t, err, "step %d", step)
		require.True(t, view.CanAdvance, "step %d", step)

		res, err := svc.Advance(ctx, id)
		require.NoError(t, err)
		require.True(t, res.Accepted, "step %d", step)

		view = waitIdle(t, svc, id)
	}

	require.True(t, view.Transition.Finished)
	assert.False(t, view.Transition.ProgressVisible)
	assert.False(t, view.CanAdvance)
	assert.False(t, view.CanRetreat)

	results, err := svc.Results(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.RecCloudSyncHandsets,
		domain.RecMultilingualCore,
		domain.RecDynamicCMSDashboard,
	}, results.Recommendation.Items)
	assert.True(t, strings.HasPrefix(results.QuoteLink, "mailto:mo@treed.co?"))
	assert.Contains(t, results.QuoteLink, "Admission%3A%20Yes%20(10%20EUR)")
	assert.Contains(t, results.QuoteLink, "Total%20Devices%3A%2020")
	assert.Equal(t, "20", results.Profile.Summary[0].Value)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.Completions) == 1
	}, time.Second, time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Recommendations.WithLabelValues(domain.RecMultilingualCore)), 0)
	assert.InDelta(t, 7, testutil.ToFloat64(metrics.Transitions.WithLabelValues(DirectionForward, "true")), 0)
}

func TestQuizService_Retreat(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)

	res, err := svc.Retreat(ctx, view.ID)
	require.NoError(t, err)
	assert.False(t, res.Accepted)

	_, err = svc.UpdateAnswers(ctx, view.ID, stepPatches[1])
	require.NoError(t, err)
	_, err = svc.Advance(ctx, view.ID)
	require.NoError(t, err)
	view = waitIdle(t, svc, view.ID)
	require.Equal(t, domain.Step(2), view.Transition.Step)
	require.True(t, view.CanRetreat)

	res, err = svc.Retreat(ctx, view.ID)
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	view = waitIdle(t, svc, view.ID)
	assert.Equal(t, domain.FirstStep, view.Transition.Step)
	assert.Equal(t, 5000, view.Answers.AnnualVisitors, "answers survive navigation")
}

func TestQuizService_Restart(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.StartSession(ctx)
	require.NoError(t, err)

	_, err = svc.UpdateAnswers(ctx, view.ID, stepPatches[1])
	require.NoError(t, err)
	_, err = svc.Advance(ctx, view.ID)
	require.NoError(t, err)
	waitIdle(t, svc, view.ID)

	view, err = svc.Restart(ctx, view.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.FirstStep, view.Transition.Step)
	assert.Equal(t, domain.DefaultAnswers(), view.Answers)
	assert.False(t, view.Transition.Finished)
}

func TestQuizService_OpenDuringOutageKeepsSavedAnswers(t *testing.T) {
	store := newMemStore()
	registry := NewSessionRegistry(RegistryConfig{
		Store:   store,
		Timings: fastTimings,
		Logger:  discardLogger(),
	})
	svc := NewQuizService(QuizServiceConfig{Registry: registry, Logger: discardLogger()})
	t.Cleanup(func() { _ = svc.Close() })

	ctx := context.Background()
	id := "0b6f3c8e-2f5d-4c1e-9f61-3a7d2b9e4c10"
	key := SnapshotKey(DefaultKeyPrefix, id)
	data, err := EncodeSnapshot(sampleAnswers(), time.Now())
	require.NoError(t, err)
	store.put(key, string(data))

	store.failNextLoad(domain.NewUnavailableError("test", "timeout"))
	_, err = svc.OpenSession(ctx, id)
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))

	users := 2
	view, err := svc.UpdateAnswers(ctx, id, domain.AnswersPatch{DashboardUsers: &users})
	require.NoError(t, err)
	assert.Equal(t, sampleAnswers().Usage, view.Answers.Usage, "the update applies to the restored answers")

	stored, ok := store.get(key)
	require.True(t, ok)
	snap, err := DecodeSnapshot(stored)
	require.NoError(t, err)
	assert.Equal(t, sampleAnswers().AnnualVisitors, snap.Answers.AnnualVisitors)
	assert.Equal(t, sampleAnswers().Languages, snap.Answers.Languages)
	assert.Equal(t, 2, snap.Answers.DashboardUsers)
}
