// Package api implements the inspector REST API: codec helpers, capture
// session management and workbench monitoring, optionally guarded by a
// bearer token.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RequireToken returns a middleware that checks the bearer token against
// token. An empty token disables the check.
func RequireToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		got := extractBearerToken(c.GetHeader("Authorization"))
		if got == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid authorization header",
			})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("API: rejected invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimiter implements a simple token bucket rate limiter.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	rate    int
	burst   int
}

type clientBucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewRateLimiter creates a rate limiter with the specified requests per second.
func NewRateLimiter(rps int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientBucket),
		rate:    rps,
		burst:   rps * 2, // Allow burst of 2x rate
	}
}

// Middleware returns a Gin middleware that rate limits by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		clientIP := c.ClientIP()

		rl.mu.Lock()
		bucket, exists := rl.clients[clientIP]
		if !exists {
			bucket = &clientBucket{
				tokens:    float64(rl.burst),
				lastCheck: time.Now(),
			}
			rl.clients[clientIP] = bucket
		}

		// Refill tokens
		now := time.Now()
		elapsed := now.Sub(bucket.lastCheck).Seconds()
		bucket.tokens += elapsed * float64(rl.rate)
		if bucket.tokens > float64(rl.burst) {
			bucket.tokens = float64(rl.burst)
		}
		bucket.lastCheck = now

		if bucket.tokens < 1 {
			rl.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}

		bucket.tokens--
		rl.mu.Unlock()

		c.Next()
	}
}

// SecurityHeaders adds security-related HTTP headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Server", "eolink")

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("X-Frame-Options", "DENY")
			c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}

		c.Next()
	}
}

// RequestLogger logs incoming HTTP requests.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("api request")
	}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
