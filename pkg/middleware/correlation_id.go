package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hiveride/dispatch/pkg/logger"
)

const correlationIDHeader = "X-Correlation-ID"

// CorrelationID propagates (or generates) a correlation ID for each request
// and stores it in the request context for log enrichment.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(correlationIDHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		ctx := logger.ContextWithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationIDHeader, correlationID)

		c.Next()
	}
}
