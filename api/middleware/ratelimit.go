package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tarbouchdata/scoutscrape/config"
	"github.com/tarbouchdata/scoutscrape/models"
	"golang.org/x/time/rate"
)

// RateLimit returns per-identity token-bucket rate limiting middleware
// powered by golang.org/x/time/rate. Identity is the API key when the auth
// middleware set one, the client IP otherwise.
//
// Stale buckets are pruned opportunistically when the map grows past a
// watermark, the same lazy scheme the engine's domain memory uses, so no
// background goroutine is needed.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	type bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var mu sync.Mutex
	buckets := make(map[string]*bucket)

	acquire := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[identity]
		if !ok {
			if len(buckets) > 1024 {
				cutoff := time.Now().Add(-time.Hour)
				for id, old := range buckets {
					if old.lastSeen.Before(cutoff) {
						delete(buckets, id)
					}
				}
			}
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			buckets[identity] = b
		}
		b.lastSeen = time.Now()
		return b.limiter
	}

	return func(c *gin.Context) {
		identity := c.ClientIP()
		if key, ok := c.Get("api_key"); ok {
			identity = key.(string)
		}

		if !acquire(identity).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded for this identity, slow down",
				},
			})
			return
		}

		c.Next()
	}
}
