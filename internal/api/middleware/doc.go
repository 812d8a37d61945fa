// Package middleware provides the gate's HTTP middleware.
//
// Middleware stack includes:
//   - CORS: cross-origin access for the desktop page's address lookup
//   - RateLimit: per-IP token bucket rate limiting
//   - GlobalRateLimit: one bucket for all clients
//
// Rate Limiting:
//   - Per-IP limiters held in an expiring LRU (hashicorp/golang-lru)
//   - Token bucket algorithm (golang.org/x/time/rate)
//   - Configurable RPS and burst capacity
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
