package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-widget/internal/observability"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// RequestID makes sure every request carries an X-Request-Id. The id is echoed
// in the response and stored in both the gin and the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set("X-Request-Id", requestID)
		}
		c.Set(RequestIDKey, requestID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}
