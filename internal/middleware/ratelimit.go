package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"closetvote/internal/ratelimit"
)

// RateLimit caps requests per client IP within scope. Limiter failures let
// the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, window time.Duration, max int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := scope + ":" + c.ClientIP()
		d, err := limiter.Allow(c.Request.Context(), key, window, max)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please try again later.",
			})
			return
		}
		c.Next()
	}
}
