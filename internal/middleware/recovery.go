package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/durolink/durolink/pkg/errors"
	"github.com/durolink/durolink/pkg/logger"
	"github.com/durolink/durolink/pkg/response"
)

// Recovery converts panics into a 500 response and logs the error with
// the request's correlation id. Internals never reach the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString("request_id")),
					zap.Any("error", r),
				)
				c.Abort()
				response.Error(c, apperrors.ErrInternalServer)
			}
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, apperrors.ErrNotFound.WithMessage(
		fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}

// MethodNotAllowedHandler rejects known routes hit with the wrong verb.
func MethodNotAllowedHandler(c *gin.Context) {
	response.Error(c, apperrors.New("METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed))
}
