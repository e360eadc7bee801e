// Package middleware provides HTTP middleware for the sync API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds the request id copied into span attributes
const MaxRequestIDLength = 128

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "pimsync",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlersChain {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig returns otelgin followed by a handler that tags the
// server span with the request id and marks it as an error for 5xx
// responses. The second handler runs inside the otelgin span, before it
// ends.
func TracingWithConfig(cfg TracingConfig) gin.HandlersChain {
	if !cfg.Enabled {
		return gin.HandlersChain{func(c *gin.Context) { c.Next() }}
	}
	return gin.HandlersChain{otelgin.Middleware(cfg.ServiceName), enrichSpan}
}

func enrichSpan(c *gin.Context) {
	c.Next()

	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	if requestID := requestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if c.Writer.Status() >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(c.Writer.Status()))
	}
}

func requestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader("X-Request-ID")
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}
