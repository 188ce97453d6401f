package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/practice-api/pkg/httputil"
)

type RateLimiterConfig struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

// RateLimiter keeps one token bucket per owner, or per client IP before
// authentication. Buckets idle for IdleTTL are evicted.
type RateLimiter struct {
	cfg      RateLimiterConfig
	limiters *cache.Cache
	mu       sync.Mutex
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		cfg:      cfg,
		limiters: cache.New(cfg.IdleTTL, cfg.IdleTTL),
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, ok := rl.limiters.Get(key); ok {
		limiter := v.(*rate.Limiter)
		rl.limiters.Set(key, limiter, cache.DefaultExpiration)
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)
	rl.limiters.Set(key, limiter, cache.DefaultExpiration)
	return limiter
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if owner, ok := OwnerID(c); ok {
			key = "owner:" + owner.String()
		}

		limiter := rl.limiter(key)
		if !limiter.Allow() {
			r := limiter.Reserve()
			retry := r.Delay()
			r.Cancel()
			c.Header("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())+1))
			httputil.RespondWithMessage(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
