package middleware

import (
	"bytes"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jgirmay/cardstudy/internal/metrics"
)

// bodyLogWriter wraps gin.ResponseWriter to capture response body size
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write implements io.Writer for capturing response body
func (w *bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// MetricsMiddleware creates a middleware that records HTTP request metrics
func MetricsMiddleware(registry *metrics.HTTPMetricsRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		registry.IncrementActiveRequests()
		defer registry.DecrementActiveRequests()

		method := c.Request.Method
		path := c.FullPath() // route template, e.g. /api/cards/:cardId/reviews
		if path == "" {
			path = c.Request.URL.Path
		}
		reqSize := c.Request.ContentLength

		blw := &bodyLogWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		respSize := int64(blw.body.Len())

		registry.RecordRequest(method, path, status, duration, reqSize, respSize)
	}
}
