package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"olafo/metrics"
)

// Metrics records Prometheus request metrics. Paths are labeled with the
// route template so ids do not explode cardinality. Register it before the
// recovery middleware so panicking requests are counted with their 500.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			path := c.FullPath()
			if path == "" {
				path = "unmatched"
			}
			metrics.HTTPRequestsTotal.WithLabelValues(
				c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
			).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(
				c.Request.Method, path,
			).Observe(time.Since(start).Seconds())
		}()
		c.Next()
	}
}
