// Package middleware holds gin middlewares shared by the HTTP surface.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client IP. Idle buckets are
// dropped after ttl.
type RateLimiter struct {
	mu        sync.Mutex
	ips       map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(r rate.Limit, b int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		ips:   make(map[string]*limiterEntry),
		rate:  r,
		burst: b,
		ttl:   ttl,
		now:   time.Now,
	}
}

// PerMinute builds a limit of n events per minute.
func PerMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(n))
}

// GetLimiter returns the rate limiter for the given IP
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.ttl {
		for k, e := range rl.ips {
			if now.Sub(e.lastSeen) > rl.ttl {
				delete(rl.ips, k)
			}
		}
		rl.lastSweep = now
	}

	e, ok := rl.ips[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "Too many requests"})
			return
		}
		c.Next()
	}
}
