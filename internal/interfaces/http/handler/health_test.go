package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/pimsync/backend/internal/infrastructure/cache"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		checks   []HealthCheck
		wantCode int
	}{
		{name: "no checks", wantCode: http.StatusOK},
		{
			name:     "store reachable",
			checks:   []HealthCheck{{Name: "store", Pinger: cache.NewInMemoryFieldStore()}},
			wantCode: http.StatusOK,
		},
		{
			name: "database down",
			checks: []HealthCheck{
				{Name: "store", Pinger: cache.NewInMemoryFieldStore()},
				{Name: "database", Pinger: pingFunc(func(context.Context) error { return errors.New("connection refused") })},
			},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			NewHealthHandler("test", tt.checks...).RegisterRoutes(&engine.RouterGroup)

			w, env := serve(t, engine, http.MethodGet, "/health", "")

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantCode == http.StatusOK, env.Success)
			if tt.wantCode != http.StatusOK {
				assert.Contains(t, string(env.Data), "connection refused")
				assert.Equal(t, "ERR_UNAVAILABLE", env.Error.Code)
			}
		})
	}
}
