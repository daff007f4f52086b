package middleware

import (
	"strconv"
	"time"

	"github.com/annazecevic/song-service/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request counts and latencies per route template, so
// /api/songs/:songId/ratings is a single series regardless of the id.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method

		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
