package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"triplink_chat/internal/metrics"
)

// Metrics 記錄每個請求的 Prometheus 指標
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 使用路由樣板避免 /rooms/1、/rooms/2 產生大量標籤
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
	}
}
