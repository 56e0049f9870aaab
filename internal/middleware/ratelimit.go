package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/durolink/durolink/internal/cache"
	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/response"
)

const rateLimitPrefix = "ratelimit:"

// RateLimit counts requests per (client IP, route) in a fixed window
// against the shared cache store. A nil store or non-positive limit
// disables limiting. Store failures fail open: resolution traffic is
// cheap relative to a hard outage.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Minute
	}

	return func(c *gin.Context) {
		if store == nil || maxRequests <= 0 {
			c.Next()
			return
		}

		key := rateLimitPrefix + c.ClientIP() + "|" + c.FullPath()
		count, ttl, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			c.Next()
			return
		}

		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))

		if count > int64(maxRequests) {
			c.Abort()
			response.Error(c, apperrors.ErrRateLimit)
			return
		}

		c.Next()
	}
}
