package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// MaxClients bounds the number of tracked client IPs.
	MaxClients int
	// IdleTTL forgets a client that has not been seen for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		MaxClients:        10000,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimit creates a per-IP rate limiting middleware. Limiters live in an
// expiring LRU so idle clients are dropped.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	defaults := DefaultRateLimitConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = defaults.MaxClients
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaults.IdleTTL
	}
	clients := expirable.NewLRU[string, *rate.Limiter](cfg.MaxClients, nil, cfg.IdleTTL)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		limiter, ok := clients.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		}
		// Re-adding refreshes the idle expiry.
		clients.Add(ip, limiter)

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// GlobalRateLimit creates a global rate limiting middleware.
func GlobalRateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
