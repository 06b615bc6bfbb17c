package handlers

import (
	"context"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClinicHandler serves the doctor's side of a clinic session: opening and
// closing it, calling patients and handling no-shows. Every route works on
// one of the caller's schedules dated today.
type ClinicHandler struct {
	Queue *services.QueueService
	Log   *zap.Logger
}

// NewClinicHandler creates a new ClinicHandler.
func NewClinicHandler(svc *services.Services, log *zap.Logger) *ClinicHandler {
	return &ClinicHandler{Queue: svc.Queue, Log: log}
}

func (h *ClinicHandler) OpenClinic(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := h.Queue.OpenClinic(c.Request.Context(), doctorID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Clinic opened", status)
}

func (h *ClinicHandler) CloseClinic(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Queue.CloseClinic(c.Request.Context(), doctorID, c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Clinic closed", nil)
}

func (h *ClinicHandler) QueueStatus(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	status, err := h.Queue.DoctorQueueStatus(c.Request.Context(), doctorID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Queue status fetched successfully", status)
}

func (h *ClinicHandler) WaitingPatients(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	patients, err := h.Queue.WaitingPatients(c.Request.Context(), doctorID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Waiting patients fetched successfully", patients)
}

func (h *ClinicHandler) CallNextPatient(c *gin.Context) {
	h.ticket(c, func(ctx context.Context, doctorID string) (*services.TicketResult, error) {
		return h.Queue.CallNext(ctx, doctorID, c.Param("id"))
	})
}

func (h *ClinicHandler) MarkNoShow(c *gin.Context) {
	h.ticket(c, func(ctx context.Context, doctorID string) (*services.TicketResult, error) {
		return h.Queue.MarkNoShow(ctx, doctorID, c.Param("id"), c.Param("checkin_id"))
	})
}

func (h *ClinicHandler) ReCheckIn(c *gin.Context) {
	h.ticket(c, func(ctx context.Context, doctorID string) (*services.TicketResult, error) {
		return h.Queue.ReCheckIn(ctx, doctorID, c.Param("id"), c.Param("checkin_id"))
	})
}

func (h *ClinicHandler) ManualCheckIn(c *gin.Context) {
	h.ticket(c, func(ctx context.Context, doctorID string) (*services.TicketResult, error) {
		return h.Queue.ManualCheckIn(ctx, doctorID, c.Param("id"), c.Param("appointment_id"))
	})
}

func (h *ClinicHandler) ticket(c *gin.Context, run func(ctx context.Context, doctorID string) (*services.TicketResult, error)) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := run(c.Request.Context(), doctorID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, res.Message, res)
}

func (h *ClinicHandler) StartConsultation(c *gin.Context) {
	h.advance(c, h.Queue.StartConsult, "Consultation started")
}

func (h *ClinicHandler) CompleteAppointment(c *gin.Context) {
	h.advance(c, h.Queue.Complete, "Appointment completed")
}

func (h *ClinicHandler) advance(c *gin.Context, run func(ctx context.Context, doctorID, scheduleID, appointmentID string) (*models.AppointmentView, error), message string) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	appt, err := run(c.Request.Context(), doctorID, c.Param("id"), c.Param("appointment_id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, message, appt)
}
