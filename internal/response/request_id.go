package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key holding the request ID.
const ContextKeyRequestID = "request_id"

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID, honoring one supplied
// by the caller so exam clients can correlate retries across the proxy.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(requestIDHeader, reqID)
		c.Next()
	}
}
