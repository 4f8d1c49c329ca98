// Package middleware provides HTTP middleware components for the Gin server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/gallery-quiz/internal/platform/logging"
)

const (
	// HeaderRequestID carries the per-request ID.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID carries the journey ID. A rendering layer sets one
	// per visitor journey so that every request of a quiz run can be found
	// together in the logs.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin context key of the request ID.
	ContextKeyRequestID = "request_id"

	// ContextKeyCorrelationID is the gin context key of the correlation ID.
	ContextKeyCorrelationID = "correlation_id"
)

// maxIDLength caps caller-supplied IDs; longer values are replaced.
const maxIDLength = 128

// idSource describes one propagated ID: where it is read and echoed,
// where handlers find it and how it reaches the context logger.
type idSource struct {
	header string
	key    string
	enrich func(ctx context.Context, id string) context.Context
}

var (
	requestIDSource     = idSource{header: HeaderRequestID, key: ContextKeyRequestID, enrich: logging.WithRequestID}
	correlationIDSource = idSource{header: HeaderCorrelationID, key: ContextKeyCorrelationID, enrich: logging.WithCorrelationID}
)

// RequestID returns middleware that accepts the caller's X-Request-ID or
// generates one. The ID is echoed in the response header and attached to
// the context logger.
func RequestID() gin.HandlerFunc {
	return requestIDSource.middleware()
}

// CorrelationID returns middleware that propagates the correlation ID,
// generating one when the caller did not send it.
func CorrelationID() gin.HandlerFunc {
	return correlationIDSource.middleware()
}

// GetRequestID returns the request ID, or "" before RequestID ran.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// GetCorrelationID returns the correlation ID, or "" before CorrelationID ran.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}

// SessionContext attaches the :id path parameter to the context logger,
// so every log line of a session route carries session_id.
// Malformed IDs are left for the handler to reject.
func SessionContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Param("id"); acceptableID(id) {
			c.Request = c.Request.WithContext(logging.WithSessionID(c.Request.Context(), id))
		}

		c.Next()
	}
}

func (s idSource) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(s.header)
		if !acceptableID(id) {
			id = uuid.New().String()
		}

		c.Set(s.key, id)
		c.Header(s.header, id)
		c.Request = c.Request.WithContext(s.enrich(c.Request.Context(), id))

		c.Next()
	}
}

// acceptableID reports whether a caller-supplied ID is non-empty, bounded
// and visible ASCII, so it is safe to echo in headers and logs.
func acceptableID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] < '!' || id[i] > '~' {
			return false
		}
	}

	return true
}
