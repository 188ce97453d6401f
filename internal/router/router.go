package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	promhandler "github.com/jwalitptl/practice-api/internal/handler/prometheus"
	"github.com/jwalitptl/practice-api/internal/middleware"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   Handler
	handlers []Handler
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	config   RouterConfig
}

type RouterConfig struct {
	Debug          bool
	RequestTimeout time.Duration
	MaxBodySize    int64
	RateLimit      *middleware.RateLimiterConfig
}

// NewRouter wires the middleware chain. health is mounted without
// authentication; handlers are mounted under /api/v1 behind it.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	handlers []Handler,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	config RouterConfig,
) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	engine := gin.New()
	r := &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		handlers: handlers,
		metrics:  m,
		gatherer: gatherer,
		config:   config,
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		r.metricsMiddleware(),
		middleware.ErrorHandler(config.Debug),
		middleware.SecurityHeaders(),
		middleware.Timeout(config.RequestTimeout),
		middleware.BodyLimit(config.MaxBodySize),
	)
	return r
}

func (r *Router) Setup() {
	if r.gatherer != nil {
		r.engine.GET("/metrics", promhandler.New(r.gatherer).Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	if r.health != nil {
		r.health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	if r.config.RateLimit != nil {
		protected.Use(middleware.NewRateLimiter(*r.config.RateLimit).RateLimit())
	}
	for _, h := range r.handlers {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// metricsMiddleware labels by route template so ids do not explode cardinality.
func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		r.metrics.ObserveRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
