package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/dto"
	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/handlers"
	"github.com/jsamuelsen/gallery-quiz/internal/adapters/http/middleware"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/config"
	"github.com/jsamuelsen/gallery-quiz/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 10 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// QuizHandler serves the wizard API. Nil leaves /api/v1 empty.
	QuizHandler *handlers.QuizHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Context logger - base logger for the request context
//  3. Request ID - generate/extract request ID
//  4. Correlation ID - handle distributed tracing correlation
//  5. OpenTelemetry - spans, trace ID exposure and RED metrics
//  6. Logging - request logging (skips health endpoints)
//  7. Timeout and session context - /api/v1 only
//
// Route groups:
//   - /-/ (internal): health, build info and metrics
//   - /api/v1/quiz: the wizard
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	serviceName := "gallery-quiz"
	if cfg.AppConfig != nil && cfg.AppConfig.Name != "" {
		serviceName = cfg.AppConfig.Name
	}

	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.ContextLogger(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(serviceName),
		telemetry.Middleware(serviceName),
		middleware.Logging(cfg.Logger),
	)

	// Probes get no timeout.
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	apiV1.Use(middleware.SessionContext())

	if cfg.QuizHandler != nil {
		cfg.QuizHandler.RegisterQuizRoutes(apiV1)
	}

	registerFallbacks(engine)
}

// registerFallbacks answers unknown routes with the standard error envelope.
func registerFallbacks(engine *gin.Engine) {
	engine.NoRoute(func(c *gin.Context) {
		dto.RespondWithCode(c, dto.ErrorCodeNotFound, "route not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		dto.RespondWithCode(c, dto.ErrorCodeMethodNotAllowed, "method not allowed")
	})
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for tests or a probe-only deployment.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	registerFallbacks(engine)
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	healthHandler *handlers.HealthHandler,
	quizHandler *handlers.QuizHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: healthHandler,
		QuizHandler:   quizHandler,
		Timeout:       DefaultRequestTimeout,
	}
}
