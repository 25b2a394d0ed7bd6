package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/LACC-DEVLINK/checkin-exercito-api/pkg/errors"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/response"
)

// Recovery converts panics into a 500 response and logs the error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.WithModule("http").Error("panic",
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", r),
				)
				response.Error(c, http.StatusInternalServerError, apperrors.ErrInternal)
			}
		}()
		c.Next()
	}
}

// NotFoundHandler returns a JSON 404 response for unknown routes.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, http.StatusNotFound,
		apperrors.New(apperrors.ErrNotFound.Code, fmt.Sprintf("route %s not found", c.Request.URL.Path)))
}
