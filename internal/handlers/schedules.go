package handlers

import (
	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScheduleHandler serves doctors' clinic sessions.
type ScheduleHandler struct {
	Schedules *services.ScheduleService
	Log       *zap.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(svc *services.Services, log *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{Schedules: svc.Schedules, Log: log}
}

// ScheduleListQuery holds the schedule list filters. doctor_id may repeat.
type ScheduleListQuery struct {
	PageQuery
	DoctorIDs  []string `form:"doctor_id"`
	Date       string   `form:"date" binding:"omitempty,datetime=2006-01-02"`
	Month      int      `form:"month" binding:"omitempty,min=1,max=12"`
	Year       int      `form:"year" binding:"omitempty,min=2000,max=2100"`
	TimePeriod string   `form:"time_period" binding:"omitempty,oneof=morning afternoon night"`
	Specialty  string   `form:"specialty"`
	Status     []string `form:"status" binding:"omitempty,dive,oneof=available open closed leave_pending leave_approved"`
}

func (q ScheduleListQuery) query() services.ScheduleQuery {
	out := services.ScheduleQuery{
		DoctorIDs:  q.DoctorIDs,
		Date:       q.Date,
		Month:      q.Month,
		Year:       q.Year,
		TimePeriod: lifecycle.TimePeriod(q.TimePeriod),
		Specialty:  q.Specialty,
		Skip:       q.Skip,
		Limit:      q.Limit,
	}
	for _, s := range q.Status {
		out.Statuses = append(out.Statuses, lifecycle.ScheduleStatus(s))
	}
	return out
}

// ListSchedules returns schedules matching the query, with doctor name and specialty.
// It backs both the admin console and the public listing.
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var q ScheduleListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	schedules, err := h.Schedules.List(c.Request.Context(), q.query())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedules fetched successfully", schedules)
}

// GetDoctorSchedules lists the calling doctor's own schedules.
func (h *ScheduleHandler) GetDoctorSchedules(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var q ScheduleListQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	schedules, err := h.Schedules.DoctorSchedules(c.Request.Context(), doctorID, q.query())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedules fetched successfully", schedules)
}

// GetSchedule returns one schedule.
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	schedule, err := h.Schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule fetched successfully", schedule)
}

// CreateScheduleRequest represents the request body for one schedule.
type CreateScheduleRequest struct {
	DoctorID    string `json:"doctor_id" binding:"required"`
	Date        string `json:"date" binding:"required,datetime=2006-01-02"`
	TimePeriod  string `json:"time_period" binding:"required,oneof=morning afternoon night"`
	MaxPatients int    `json:"max_patients" binding:"omitempty,min=0"`
}

// CreateSchedule adds a schedule.
func (h *ScheduleHandler) CreateSchedule(c *gin.Context) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	schedule, err := h.Schedules.Create(c.Request.Context(), actorID, services.ScheduleInput{
		DoctorID:    req.DoctorID,
		Date:        req.Date,
		TimePeriod:  lifecycle.TimePeriod(req.TimePeriod),
		MaxPatients: req.MaxPatients,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Schedule created successfully", schedule)
}

// UpdateScheduleRequest represents a partial schedule update.
type UpdateScheduleRequest struct {
	DoctorID    *string `json:"doctor_id"`
	Date        *string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	TimePeriod  *string `json:"time_period" binding:"omitempty,oneof=morning afternoon night"`
	MaxPatients *int    `json:"max_patients" binding:"omitempty,min=0"`
	Status      *string `json:"status" binding:"omitempty,oneof=available open closed leave_pending leave_approved"`
}

// UpdateSchedule changes a schedule.
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	in := services.ScheduleUpdate{
		DoctorID:    req.DoctorID,
		Date:        req.Date,
		MaxPatients: req.MaxPatients,
	}
	if req.TimePeriod != nil {
		p := lifecycle.TimePeriod(*req.TimePeriod)
		in.TimePeriod = &p
	}
	if req.Status != nil {
		s := lifecycle.ScheduleStatus(*req.Status)
		in.Status = &s
	}
	schedule, err := h.Schedules.Update(c.Request.Context(), actorID, c.Param("id"), in)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule updated successfully", schedule)
}

// DeleteSchedule removes a schedule without bookings.
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Schedules.Delete(c.Request.Context(), actorID, c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Schedule deleted successfully", nil)
}

// RecurringScheduleRequest creates one schedule per matching weekday.
type RecurringScheduleRequest struct {
	DoctorID       string `json:"doctor_id" binding:"required"`
	DayOfWeek      *int   `json:"day_of_week" binding:"required,min=0,max=6"`
	TimePeriod     string `json:"time_period" binding:"required,oneof=morning afternoon night"`
	StartDate      string `json:"start_date" binding:"required,datetime=2006-01-02"`
	MonthsToCreate int    `json:"months_to_create" binding:"required,min=1,max=12"`
	MaxPatients    int    `json:"max_patients" binding:"omitempty,min=0"`
}

// CreateRecurringSchedules creates a recurring group of schedules.
func (h *ScheduleHandler) CreateRecurringSchedules(c *gin.Context) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req RecurringScheduleRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	res, err := h.Schedules.CreateRecurring(c.Request.Context(), actorID, services.RecurringInput{
		DoctorID:       req.DoctorID,
		DayOfWeek:      *req.DayOfWeek,
		TimePeriod:     lifecycle.TimePeriod(req.TimePeriod),
		StartDate:      req.StartDate,
		MonthsToCreate: req.MonthsToCreate,
		MaxPatients:    req.MaxPatients,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Recurring schedules created successfully", res)
}

// DeleteRecurringSchedules removes a recurring group from the `from` date on.
func (h *ScheduleHandler) DeleteRecurringSchedules(c *gin.Context) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	deleted, err := h.Schedules.DeleteRecurring(c.Request.Context(), actorID, c.Param("group_id"), c.Query("from"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Recurring schedules deleted successfully", gin.H{"deleted": deleted})
}
