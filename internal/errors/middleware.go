package errors

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrorHandlerMiddleware turns the first error attached to the gin context
// into the {"message": ...} response the HTTP API promises.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("RequestID", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		if len(c.Errors) > 0 {
			Err(c, c.Errors[0].Err)
			c.Abort()
		}
	}
}

// RecoveryMiddleware contains panics in request handlers; the engine stays
// live and the request fails with a 500 instead of taking the server down.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				var err *AppError
				switch v := r.(type) {
				case error:
					err = Internal("panic recovered", v)
				default:
					err = Internal(fmt.Sprintf("panic recovered: %v", r), nil)
				}

				log.Error().Str("request_id", c.GetString("RequestID")).Interface("panic", r).Msg("recovered from panic")

				c.JSON(err.Code, err)
				c.Abort()
			}
		}()

		c.Next()
	}
}
