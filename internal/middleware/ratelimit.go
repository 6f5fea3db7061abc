package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/logger"
	"nightpass/internal/metrics"
	"nightpass/internal/ratelimit"
)

// RateLimit counts requests per prefix and client IP. Store errors let the
// request through.
func RateLimit(limiter ratelimit.Limiter, prefix string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), ratelimit.Key(prefix, c.ClientIP()))
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Rate limiter unavailable", "error", err, "prefix", prefix)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter(time.Now()).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			m.RateLimited(prefix)
			abort(c, http.StatusTooManyRequests, apperrors.ErrRateLimited.Error())
			return
		}
		c.Next()
	}
}
