package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"farm-console/internal/logging"
)

// RequestLoggingMiddleware logs one line per request; relay upgrades are
// logged when the socket closes.
func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		log := logger.WithField("client_ip", c.ClientIP())
		if len(c.Errors) > 0 {
			log.Warnf("Request: %s %s, Status: %d, Latency: %v, Errors: %s", method, path, status, latency, c.Errors.String())
			return
		}
		log.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}
