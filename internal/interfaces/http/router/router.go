package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/infrastructure/logger"
	"github.com/pimsync/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
	root       []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar mounted under /api/<version>
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// RegisterRoot adds a registrar mounted at the engine root, e.g. /health
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	for _, registrar := range r.root {
		registrar.RegisterRoutes(&r.engine.RouterGroup)
	}
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures NewEngine
type EngineConfig struct {
	ServiceName  string
	MaxBodyBytes int64
	Tracing      bool
}

// NewEngine creates a gin engine with the standard middleware stack:
// request logging, panic recovery, tracing and a body size limit
func NewEngine(cfg EngineConfig, log *zap.Logger) *gin.Engine {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	engine := gin.New()
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.Tracing,
	})...)
	engine.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	return engine
}
