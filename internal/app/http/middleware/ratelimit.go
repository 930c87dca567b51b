package middleware

import (
	"net/http"
	"strconv"

	"donation-app/internal/infra/logger"
	"donation-app/internal/infra/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit applies the limiter per client IP. Limiter errors let the
// request through.
func RateLimit(l *ratelimit.Limiter, scope string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		d, err := l.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			logger.Warn(c.Request.Context(), log, "rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(d.RetryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
