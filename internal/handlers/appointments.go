package handlers

import (
	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Booking *services.BookingService
	Log     *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(svc *services.Services, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{Booking: svc.Booking, Log: log}
}

// CreateAppointmentRequest represents the request body for booking a session.
type CreateAppointmentRequest struct {
	DoctorID   string `json:"doctor_id" binding:"required"`
	Date       string `json:"date" binding:"required,datetime=2006-01-02"`
	TimePeriod string `json:"time_period" binding:"required,oneof=morning afternoon night"`
}

// CreateAppointment books the caller into a doctor's session. A full session
// puts the appointment on the waitlist.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	patientID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.Booking.Book(c.Request.Context(), patientID, services.BookingInput{
		DoctorID:   req.DoctorID,
		Date:       req.Date,
		TimePeriod: lifecycle.TimePeriod(req.TimePeriod),
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	message := "Appointment created successfully"
	if appt.Status == lifecycle.StatusWaitlist {
		message = "The session is full, you have been added to the waitlist"
	}
	utils.Created(c, message, appt)
}

// GetMyAppointments lists the caller's appointments with their allowed actions.
func (h *AppointmentHandler) GetMyAppointments(c *gin.Context) {
	patientID, _, ok := currentUser(c)
	if !ok {
		return
	}
	appts, err := h.Booking.ListForPatient(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// CancelAppointment cancels one of the caller's appointments.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	patientID, _, ok := currentUser(c)
	if !ok {
		return
	}
	appt, err := h.Booking.Cancel(c.Request.Context(), patientID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Appointment cancelled successfully", appt)
}

// DoctorAppointmentsQuery filters a doctor's appointment list.
type DoctorAppointmentsQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// GetDoctorAppointments lists the calling doctor's appointments, optionally for one date.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var q DoctorAppointmentsQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	appts, err := h.Booking.ListForDoctor(c.Request.Context(), doctorID, q.Date)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// UpdateStatusRequest names the lifecycle action to apply.
type UpdateStatusRequest struct {
	Action string `json:"action" binding:"required"`
}

// UpdateAppointmentStatus applies an admin lifecycle action to an appointment.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	actorID, role, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	action, err := lifecycle.ParseAction(req.Action)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	appt, err := h.Booking.ApplyAction(c.Request.Context(), actorID, role, c.Param("id"), action)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt)
}
