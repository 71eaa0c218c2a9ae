package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/charlesng35/uniauth/internal/auditctx"
)

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// RequestOrigin tags the request context with the client address, user agent and
// request ID so audit entries written further down can record them.
func RequestOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set("request_id", requestID)

		ctx := auditctx.WithOrigin(c.Request.Context(), auditctx.Origin{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			RequestID: requestID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
