package handlers

import (
	"context"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LeaveHandler serves doctors' leave requests and their admin review.
type LeaveHandler struct {
	Leave *services.LeaveService
	Log   *zap.Logger
}

// NewLeaveHandler creates a new LeaveHandler.
func NewLeaveHandler(svc *services.Services, log *zap.Logger) *LeaveHandler {
	return &LeaveHandler{Leave: svc.Leave, Log: log}
}

// LeaveRequestBody asks for one session off.
type LeaveRequestBody struct {
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	TimePeriod string `json:"time_period" binding:"required,oneof=morning afternoon night"`
	Reason     string `json:"reason" binding:"required"`
}

// RequestLeave files a leave request for one of the caller's sessions.
func (h *LeaveHandler) RequestLeave(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req LeaveRequestBody
	if !utils.BindAndValidate(c, &req) {
		return
	}
	lr, err := h.Leave.Request(c.Request.Context(), doctorID, services.LeaveInput{
		Date:       req.Date,
		TimePeriod: lifecycle.TimePeriod(req.TimePeriod),
		Reason:     req.Reason,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Leave request submitted, waiting for review", lr)
}

// LeaveRangeBody asks for every listed session between two dates off.
// An empty time_periods covers all sessions.
type LeaveRangeBody struct {
	StartDate   string   `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" binding:"required,datetime=2006-01-02"`
	TimePeriods []string `json:"time_periods" binding:"omitempty,dive,oneof=morning afternoon night"`
	Reason      string   `json:"reason" binding:"required"`
}

// RequestLeaveRange files leave for a date range.
func (h *LeaveHandler) RequestLeaveRange(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req LeaveRangeBody
	if !utils.BindAndValidate(c, &req) {
		return
	}
	in := services.LeaveRangeInput{StartDate: req.StartDate, EndDate: req.EndDate, Reason: req.Reason}
	for _, p := range req.TimePeriods {
		in.TimePeriods = append(in.TimePeriods, lifecycle.TimePeriod(p))
	}
	res, err := h.Leave.RequestRange(c.Request.Context(), doctorID, in)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, res.Message, res)
}

// ListPendingLeaveRequests returns the requests awaiting review.
func (h *LeaveHandler) ListPendingLeaveRequests(c *gin.Context) {
	pending, err := h.Leave.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Leave requests fetched successfully", pending)
}

// ApproveLeave grants a pending leave request.
func (h *LeaveHandler) ApproveLeave(c *gin.Context) {
	h.review(c, h.Leave.Approve, "Leave request approved")
}

// RejectLeave refuses a pending leave request.
func (h *LeaveHandler) RejectLeave(c *gin.Context) {
	h.review(c, h.Leave.Reject, "Leave request rejected")
}

func (h *LeaveHandler) review(c *gin.Context, decide func(ctx context.Context, adminID, scheduleID string) (*models.LeaveRequest, error), message string) {
	adminID, _, ok := currentUser(c)
	if !ok {
		return
	}
	lr, err := decide(c.Request.Context(), adminID, c.Param("schedule_id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, message, lr)
}
