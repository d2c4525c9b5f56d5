package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saaskit/backend/internal/interfaces/http/dto"
)

// DefaultMaxBodyBytes is the request body cap applied to webhook routes.
const DefaultMaxBodyBytes = 1 << 20 // 1 MiB

// BodyLimit returns a middleware that limits request body size.
// Oversized requests are rejected before any handler reads the body.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(
				dto.ErrCodePayloadTooLarge,
				"Request body exceeds maximum allowed size",
			))
			return
		}

		// Wrap the body with a limited reader for streaming requests
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
