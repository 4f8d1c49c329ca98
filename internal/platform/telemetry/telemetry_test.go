package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		desc := newSampler(tt.rate).Description()
		assert.True(t, strings.HasPrefix(desc, "ParentBased{root:"+tt.want), "rate %v: %s", tt.rate, desc)
	}
}

func TestNewResource_AddsAttributes(t *testing.T) {
	res, err := newResource(&Config{
		ServiceName: "gallery-quiz",
		Version:     "1.2.3",
		Environment: "test",
		Attributes:  []attribute.KeyValue{attribute.String("quiz.store.backend", "redis")},
	})
	require.NoError(t, err)

	set := res.Set()
	backend, ok := set.Value("quiz.store.backend")
	require.True(t, ok)
	assert.Equal(t, "redis", backend.AsString())

	name, ok := set.Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "gallery-quiz", name.AsString())
}

// withRecorder installs a recording tracer provider for the duration of a test.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	return recorder
}

func TestMiddleware_ExposesTraceID(t *testing.T) {
	withRecorder(t)

	router := gin.New()
	router.Use(TracingMiddleware("gallery-quiz"), Middleware("gallery-quiz"))

	var seen string
	router.GET("/api/v1/quiz/catalog", func(c *gin.Context) {
		seen = c.GetString(traceIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quiz/catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, seen, 32)
	assert.Equal(t, seen, w.Header().Get("X-Trace-ID"))
}

func TestTracingMiddleware_SkipsInternalRoutes(t *testing.T) {
	recorder := withRecorder(t)

	router := gin.New()
	router.Use(TracingMiddleware("gallery-quiz"), Middleware("gallery-quiz"))
	router.GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/quiz/catalog", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/-/live", "/api/v1/quiz/catalog"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/quiz/catalog")
}

func TestMiddleware_WithoutSpan(t *testing.T) {
	router := gin.New()
	router.Use(Middleware("gallery-quiz"))

	var exists bool
	router.GET("/x", func(c *gin.Context) {
		_, exists = c.Get(traceIDKey)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, exists)
	assert.Empty(t, w.Header().Get("X-Trace-ID"))
}

func TestRouteOf(t *testing.T) {
	router := gin.New()

	var matched, unmatched string
	router.GET("/sessions/:id", func(c *gin.Context) { matched = routeOf(c) })
	router.NoRoute(func(c *gin.Context) { unmatched = routeOf(c) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, "/sessions/:id", matched)
	assert.Equal(t, unmatchedRoute, unmatched)
}
