package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MacJediWizard/siteadmin/internal/metrics"
)

// Metrics records every request under its route pattern. Requests that
// matched no route are grouped as "unmatched".
func Metrics(m *metrics.PrometheusMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
