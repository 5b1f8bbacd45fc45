package router

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/intake-api/internal/handler"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	"github.com/jwalitptl/intake-api/internal/handler/metrics"
	"github.com/jwalitptl/intake-api/internal/middleware"
	appmetrics "github.com/jwalitptl/intake-api/pkg/metrics"
)

// AuthTokenPath is reachable without a bearer token.
const AuthTokenPath = "/api/auth/token"

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	CORSConfig      middleware.CORSConfig
	TimeoutConfig   middleware.TimeoutConfig
	SizeLimitConfig middleware.SizeLimitConfig
	SecurityConfig  middleware.SecurityConfig
	// RateLimit is nil when rate limiting is disabled.
	RateLimit *middleware.RateLimiterConfig
	// Metrics counts recovered panics; optional.
	Metrics *appmetrics.Metrics
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	system  *handler.Handler
	health  *health.Handler
	metrics *metrics.Handler
	api     []Handler
}

// NewRouter builds the engine and its global middleware chain. auth may be
// nil, in which case the API is open.
func NewRouter(
	config RouterConfig,
	system *handler.Handler,
	healthH *health.Handler,
	metricsH *metrics.Handler,
	auth *middleware.AuthMiddleware,
	api ...Handler,
) (*Router, error) {
	if err := middleware.RegisterBindingValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine:  engine,
		auth:    auth,
		system:  system,
		health:  healthH,
		metrics: metricsH,
		api:     api,
	}

	engine.Use(
		middleware.Recovery(config.Metrics),
		middleware.RequestID(),
		middleware.Logger(),
		metricsH.Middleware(),
		middleware.ErrorHandler(),
		middleware.Validation(),
		middleware.SecurityHeaders(config.SecurityConfig),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimitConfig),
		middleware.Timeout(config.TimeoutConfig),
	)

	if config.RateLimit != nil {
		engine.Use(middleware.NewRateLimiter(*config.RateLimit).RateLimit())
	}

	return r, nil
}

func (r *Router) Setup() {
	r.system.RegisterRoutes(r.engine)
	r.health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api")
	if r.auth != nil {
		api.Use(r.auth.Authenticate())
	}
	for _, h := range r.api {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
