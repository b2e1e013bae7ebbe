package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func accessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	accessLog := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		accessLog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// WebhookRateLimit throttles webhook ingestion per source address.
// Disabled unless configured.
func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.WebhookRateLimitEnabled || s.webhookLimiter == nil {
			c.Next()
			return
		}

		key := "communa:webhook:ratelimit:" + c.ClientIP()
		res, err := s.webhookLimiter.Allow(c.Request.Context(), key, s.cfg.WebhookRateLimitRate, s.cfg.WebhookRateLimitBurst)
		if err != nil {
			// Fail open: a broken limiter must not drop billing events.
			s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
