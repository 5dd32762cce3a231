package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/ytgrab/internal/utils"
)

// CorrelationIDMiddleware tags every request with correlation and request IDs
// and logs its start and completion.
func CorrelationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Reuse the caller's correlation ID when provided
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = utils.GenerateCorrelationID()
		}

		requestID := utils.GenerateRequestID()

		c.Set("correlation_id", correlationID)
		c.Set("request_id", requestID)

		c.Header("X-Correlation-ID", correlationID)
		c.Header("X-Request-ID", requestID)

		ctx := c.Request.Context()
		ctx = utils.WithCorrelationID(ctx, correlationID)
		ctx = utils.WithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)

		fields := utils.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
		}

		// Event streams stay open for the whole download
		if strings.HasSuffix(c.Request.URL.Path, "/events") {
			utils.LogDebug(ctx, "Incoming request", fields)
		} else {
			utils.LogInfo(ctx, "Incoming request", fields)
		}

		c.Next()

		utils.LogInfo(ctx, "Request completed", utils.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		})
	}
}
