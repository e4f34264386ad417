package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopfloor/moldtrack/internal/observability/logger"
	"go.uber.org/zap"
)

// RecordingRateLimit throttles production recordings per mold and across
// the fleet. A broken redis degrades to unavailable rather than letting
// unmetered writes through.
func (s *Server) RecordingRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.recordingLimiter == nil || !s.recordingLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		moldID := strings.TrimSpace(c.Param("id"))

		allowed, err := s.recordingLimiter.AllowGlobal(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("global recording rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}

		allowed, err = s.recordingLimiter.AllowMold(ctx, moldID)
		if err != nil {
			logger.FromContext(ctx).Warn("mold recording rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}
