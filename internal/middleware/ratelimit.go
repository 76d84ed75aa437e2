package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Uuq114/JanusBedrock/internal/request"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Buckets idle for
// longer than idleTTL are evicted.
type RateLimiter struct {
	buckets   map[string]*bucket
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(requestsPerMinute, burst int, idleTTL time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Every(time.Minute / time.Duration(requestsPerMinute)),
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	rl.sweep(now)
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Len reports how many client buckets are held.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// sweep runs at most once per idleTTL. Callers hold rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.idleTTL <= 0 || now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.idleTTL {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

// RateLimit rejects requests above requestsPerMinute per client IP with 429.
// The client IP honours X-Forwarded-For only from the engine's trusted proxies.
func RateLimit(requestsPerMinute, burst int, idleTTL time.Duration, logger *zap.Logger) gin.HandlerFunc {
	limiter := NewRateLimiter(requestsPerMinute, burst, idleTTL)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			logger.Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("request_id", GetRequestID(c)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, request.ErrorResponse{
				Detail: "Too many requests",
			})
			return
		}
		c.Next()
	}
}
