package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/metrics"
)

// Metrics records request latency for each operational HTTP request. Unknown
// routes share one label so scanners cannot inflate cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.OpsLatency.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
