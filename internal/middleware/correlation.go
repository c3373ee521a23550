// Package middleware contains Gin middleware shared by the HTTP control
// surface.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/logging"
)

// HeaderXCorrelationID is the header key used to correlate a request across
// logs, carried through from the caller if present.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID assigns (or propagates) a correlation ID for every request,
// attaching it to the response header and to the logging context key so
// every log line emitted while handling the request can be grepped for it.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		c.Header(HeaderXCorrelationID, correlationID)
		c.Request = c.Request.WithContext(logging.WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}
