package config

import (
	"time"

	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const slowRequestThreshold = 200 * time.Millisecond

func PerformanceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		event := log.Info()
		if latency > slowRequestThreshold {
			event = log.Warn().Bool("slow", true)
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("request_id", c.GetString(utils.RequestIDKey)).
			Msg("request")
	}
}
