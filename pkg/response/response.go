package response

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/LACC-DEVLINK/checkin-exercito-api/pkg/errors"
)

// Response defines the payload envelope of the operational endpoints.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo holds error details to send to clients.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Error writes a JSON error response. Only the AppError code and message are
// exposed; internal causes stay in the logs.
func Error(c *gin.Context, statusCode int, err error) {
	appErr := apperrors.FromError(err)
	if appErr == nil {
		appErr = apperrors.ErrInternal
	}

	c.AbortWithStatusJSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}
