// Package middleware provides HTTP middleware functions for request logging and processing.
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaisil18/tv-transmision-sub000/internal/logger"
	"github.com/jaisil18/tv-transmision-sub000/internal/metrics"
)

// RequestLogger returns a Gin middleware for logging HTTP requests.
// Requests are counted on m when it is non-nil.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		m.IncRequests()
		if status >= http.StatusBadRequest {
			m.IncErrors()
		}

		// segment fetches are too chatty for info
		event := logger.Log.Info()
		if c.FullPath() == "/hls/:screen_id/:file" && status < http.StatusBadRequest {
			event = logger.Log.Debug()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")

		if len(c.Errors) > 0 {
			logger.Log.Error().
				Strs("errors", c.Errors.Errors()).
				Str("path", path).
				Msg("Request completed with errors")
		}
	}
}
