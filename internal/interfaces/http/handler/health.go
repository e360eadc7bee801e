package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pimsync/backend/internal/interfaces/http/dto"
)

// Pinger is a dependency probed by the health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck names one probed dependency
type HealthCheck struct {
	Name   string
	Pinger Pinger
}

// HealthHandler reports liveness and dependency health
type HealthHandler struct {
	BaseHandler
	version   string
	startTime time.Time
	checks    []HealthCheck
	timeout   time.Duration
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(version string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
		timeout:   2 * time.Second,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// RegisterRoutes registers /health on rg
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
}

// Health pings every dependency. It answers 503 when any of them fails.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	for _, check := range h.checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Checks[check.Name] = err.Error()
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	if resp.Status != "ok" {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeUnavailable, "one or more dependencies are unavailable", getRequestID(c)).WithData(resp))
		return
	}
	h.Success(c, resp)
}
