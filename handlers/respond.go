package handlers

import (
	"net/http"

	"oplugy/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceEntryPoint is where the storefront sends a tab with nothing to pay.
const ServiceEntryPoint = "/services"

func statusFor(code models.ErrorCode) int {
	switch code {
	case models.CodeInvalidField:
		return http.StatusBadRequest
	case models.CodeSessionNotFound:
		return http.StatusNotFound
	case models.CodeAlreadyPresented, models.CodeAttemptMismatch:
		return http.StatusConflict
	case models.CodeValidationIncomplete, models.CodeVerificationFailed:
		return http.StatusUnprocessableEntity
	case models.CodeGatewayFailed:
		return http.StatusBadGateway
	case models.CodeGatewayConfigMissing, models.CodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	case models.CodeNoDraft:
		return http.StatusNotFound
	case models.CodePaymentCancelled:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// respondError writes err as a notice. body carries whatever state the
// client should render alongside it.
func respondError(c *gin.Context, logger *zap.Logger, err error, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	appErr, ok := models.AsAppError(err)
	if !ok {
		logger.Error("Unhandled request failure", zap.String("path", c.FullPath()), zap.Error(err))
		notice := models.ErrorNotice("internal_error", "Something went wrong. Please try again.")
		body["message"] = notice.Message
		body["notice"] = notice
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("code", string(appErr.Code)), zap.Error(err))
	} else {
		logger.Info("Request refused", zap.String("code", string(appErr.Code)), zap.String("message", appErr.Message))
	}
	notice := appErr.Notice()
	body["message"] = notice.Message
	body["notice"] = notice
	// The storefront navigates on the body; a 3xx would be followed by the client.
	if appErr.Code == models.CodeNoDraft {
		body["redirect"] = ServiceEntryPoint
	}
	c.JSON(status, body)
}
