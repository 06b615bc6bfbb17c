package handlers

import (
	"time"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves the caller's inbox.
type NotificationHandler struct {
	Notifications *services.NotificationService
	Log           *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(svc *services.Services, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{Notifications: svc.Notifications, Log: log}
}

// GetNotifications lists all of the caller's notifications, newest first.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	h.list(c, time.Time{})
}

// NewNotificationsRequest represents the query params for polling new notifications.
type NewNotificationsRequest struct {
	Since string `form:"since" binding:"required"`
}

// GetNewNotifications lists notifications created after `since` (RFC3339).
func (h *NotificationHandler) GetNewNotifications(c *gin.Context) {
	var req NewNotificationsRequest
	if !utils.BindQuery(c, &req) {
		return
	}
	since, err := time.Parse(time.RFC3339, req.Since)
	if err != nil {
		utils.BadRequest(c, "Invalid timestamp format. Use RFC3339 format (e.g., 2006-01-02T15:04:05Z07:00)")
		return
	}
	h.list(c, since)
}

func (h *NotificationHandler) list(c *gin.Context, since time.Time) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.Notifications.List(c.Request.Context(), userID, since)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	utils.Success(c, "Notifications fetched successfully", items)
}

// MarkNotificationAsRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkNotificationAsRead(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.Notifications.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Notification marked as read", n)
}
