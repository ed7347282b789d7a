package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riskhub-protocol/riskhub/internal/metrics"
)

// Metrics 返回 HTTP 指标采集中间件
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// 未注册路由按原始路径归类会导致基数爆炸, 统一归入 unmatched
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
