package handlers

import (
	"net/http"

	"oplugy/middleware"
	"oplugy/services/notification"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	Feed   notification.NotificationService
	Logger *zap.Logger
}

func NewNotificationHandler(feed notification.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{Feed: feed, Logger: logger}
}

// GetNotifications handles GET /api/notifications. Each notice is delivered once.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	notices, err := h.Feed.Drain(c.Request.Context(), middleware.TabID(c))
	if err != nil {
		respondError(c, h.Logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notices": notices})
}
