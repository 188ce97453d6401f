package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger is a dependency readiness depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHandler builds the probes. Nil pingers are skipped so optional
// dependencies such as the broker can be passed unconditionally.
func NewHandler(checks map[string]Pinger) *Handler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &Handler{checks: active, timeout: 2 * time.Second}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := gin.H{}
	status := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("dependency", name).Msg("Readiness check failed")
			results[name] = "DOWN"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "UP"
	}

	overall := "UP"
	if status != http.StatusOK {
		overall = "DOWN"
	}
	c.JSON(status, gin.H{"status": overall, "checks": results})
}
