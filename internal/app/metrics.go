package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

const metricsNamespace = "quiz"

// Metrics are the quiz funnel counters exported on /-/metrics.
type Metrics struct {
	SessionsStarted     prometheus.Counter
	Transitions         *prometheus.CounterVec
	Completions         prometheus.Counter
	Recommendations     *prometheus.CounterVec
	SnapshotRestores    *prometheus.CounterVec
	SnapshotWriteErrors prometheus.Counter
	ActiveSessions      prometheus.Gauge
}

// NewMetrics registers the funnel metrics with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_started_total",
			Help:      "Quiz sessions started or resumed.",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transitions_total",
			Help:      "Step transition requests by direction and outcome.",
		}, []string{"direction", "accepted"}),
		Completions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "completions_total",
			Help:      "Quiz sessions that reached the results screen.",
		}),
		Recommendations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recommendations_total",
			Help:      "Recommendations issued by label.",
		}, []string{"label"}),
		SnapshotRestores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_restores_total",
			Help:      "Snapshot loads by outcome.",
		}, []string{"outcome"}),
		SnapshotWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_write_errors_total",
			Help:      "Snapshot writes that failed and were dropped.",
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}
}

func (m *Metrics) sessionStarted() {
	if m != nil {
		m.SessionsStarted.Inc()
	}
}

func (m *Metrics) transition(direction string, accepted bool) {
	if m == nil {
		return
	}

	label := "false"
	if accepted {
		label = "true"
	}
	m.Transitions.WithLabelValues(direction, label).Inc()
}

func (m *Metrics) completed(rec domain.Recommendation) {
	if m == nil {
		return
	}

	m.Completions.Inc()
	for _, item := range rec.Items {
		m.Recommendations.WithLabelValues(item).Inc()
	}
}

func (m *Metrics) restored(outcome RestoreOutcome) {
	if m != nil {
		m.SnapshotRestores.WithLabelValues(string(outcome)).Inc()
	}
}

func (m *Metrics) writeFailed() {
	if m != nil {
		m.SnapshotWriteErrors.Inc()
	}
}

func (m *Metrics) setActive(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}
