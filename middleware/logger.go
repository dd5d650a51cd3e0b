package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger logs each request against the guild API. The player id is
// present once Auth has run, so guild actions can be traced back to
// the acting player; unauthenticated routes log it empty.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("trace_id", GetTraceID(c)),
			zap.String("client_ip", c.ClientIP()),
		}
		if pid := GetPlayerID(c); pid != "" {
			fields = append(fields, zap.String("player_id", pid))
		}
		log.Info("http", fields...)
	}
}
