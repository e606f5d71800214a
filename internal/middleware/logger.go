package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/yeshanjun/pollux/internal/logging"
	"github.com/yeshanjun/pollux/internal/netutil"
)

// RequestLogger logs HTTP requests
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := netutil.ExtractClientIP(c)
		extras := log.Fields{
			"status":       status,
			"latency_ms":   logging.DurationMS(latency),
			"user_agent":   c.Request.UserAgent(),
			"method":       method,
			"path":         path,
			"client_ip":    netutil.IPString(clientIP),
			"client_scope": netutil.ClassifyClientSource(clientIP),
		}
		logging.WithReq(c, extras).Info("http_request")
	}
}
