package utils

import (
	"net/http"

	"oplugy/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse defines the structure of error responses
type ErrorResponse struct {
	Message string         `json:"message"`
	Details string         `json:"details,omitempty"`
	Notice  *models.Notice `json:"notice,omitempty"`
}

// ErrorHandler is a middleware to catch panics and return structured errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				Logger := GetLogger()
				Logger.Error("Unhandled panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path))

				notice := models.ErrorNotice("internal_error", "An unexpected error occurred. Please try again later.")
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Message: "Internal Server Error",
					Details: "An unexpected error occurred. Please try again later.",
					Notice:  &notice,
				})
			}
		}()
		c.Next()
	}
}

// JSONError sends a standardized JSON error response
func JSONError(c *gin.Context, status int, message string, details string) {
	Logger := GetLogger()
	Logger.Warn(message, zap.String("details", details))
	c.JSON(status, ErrorResponse{Message: message, Details: details})
}

// JSONNotice sends an error response that the storefront renders as a notification.
func JSONNotice(c *gin.Context, status int, notice models.Notice) {
	c.JSON(status, ErrorResponse{Message: notice.Message, Notice: &notice})
}
