package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

// Logger writes a concise structured access log for each request. Probe
// paths such as /health are logged at debug level to keep scrapes quiet.
func Logger(quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		log := logger.WithModule("http")
		if _, ok := quiet[path]; ok {
			log.Debug("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}
