package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutConfig represents timeout middleware configuration
type TimeoutConfig struct {
	Duration time.Duration
	// LongDuration applies to paths starting with one of LongPrefixes.
	LongDuration time.Duration
	LongPrefixes []string
}

// DefaultTimeoutConfig returns default timeout configuration
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		Duration:     30 * time.Second,
		LongDuration: 120 * time.Second,
		LongPrefixes: []string{"/api/chat", "/api/synthesize"},
	}
}

// Timeout bounds the request context. Handlers see the deadline through
// c.Request.Context() and fail their downstream calls when it passes.
func Timeout(config TimeoutConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := config.Duration
		for _, prefix := range config.LongPrefixes {
			if config.LongDuration > 0 && strings.HasPrefix(c.Request.URL.Path, prefix) {
				d = config.LongDuration
				break
			}
		}
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
