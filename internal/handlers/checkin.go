package handlers

import (
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckinHandler serves patient check-in and queue status.
type CheckinHandler struct {
	Queue *services.QueueService
	Log   *zap.Logger
}

// NewCheckinHandler creates a new CheckinHandler.
func NewCheckinHandler(svc *services.Services, log *zap.Logger) *CheckinHandler {
	return &CheckinHandler{Queue: svc.Queue, Log: log}
}

// CheckinRequest selects how the patient checks in.
type CheckinRequest struct {
	Method string `json:"method" binding:"omitempty,oneof=online onsite"`
}

// CheckIn issues a queue ticket for the caller's appointment today.
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	patientID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req CheckinRequest
	if c.Request.ContentLength != 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	method := models.CheckinOnline
	if req.Method != "" {
		method = models.CheckinMethod(req.Method)
	}

	res, err := h.Queue.CheckIn(c.Request.Context(), patientID, c.Param("appointment_id"), method)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Check-in successful", res)
}

// GetQueueStatus reports where the caller stands in the queue.
func (h *CheckinHandler) GetQueueStatus(c *gin.Context) {
	patientID, _, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := h.Queue.QueueStatus(c.Request.Context(), patientID, c.Param("appointment_id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Queue status fetched successfully", status)
}
