package handlers

import (
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MedicalRecordHandler handles medical record related requests.
type MedicalRecordHandler struct {
	Records *services.RecordService
	Log     *zap.Logger
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(svc *services.Services, log *zap.Logger) *MedicalRecordHandler {
	return &MedicalRecordHandler{Records: svc.Records, Log: log}
}

// CreateMedicalRecordRequest represents the request body for creating a medical record.
type CreateMedicalRecordRequest struct {
	PatientID     string `json:"patient_id" binding:"required"`
	AppointmentID string `json:"appointment_id"`
	Title         string `json:"title" binding:"required"`
	Summary       string `json:"summary" binding:"required"`
	Details       string `json:"details"`
}

// CreateMedicalRecord handles creating a new medical record.
// Only accessible by doctors.
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	rec, err := h.Records.Create(c.Request.Context(), doctorID, services.RecordInput{
		PatientID:     req.PatientID,
		AppointmentID: req.AppointmentID,
		Title:         req.Title,
		Summary:       req.Summary,
		Details:       req.Details,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Medical record created successfully", rec)
}

// GetMedicalRecords lists the records visible to the caller.
func (h *MedicalRecordHandler) GetMedicalRecords(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	records, err := h.Records.List(c.Request.Context(), userID, role, c.Query("patient_id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if records == nil {
		records = []models.MedicalRecord{}
	}
	utils.Success(c, "Medical records fetched successfully", records)
}

// GetMedicalRecordByID returns one record.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	userID, role, ok := currentUser(c)
	if !ok {
		return
	}
	rec, err := h.Records.Get(c.Request.Context(), userID, role, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Medical record fetched successfully", rec)
}

// UpdateMedicalRecordRequest represents a partial record update.
type UpdateMedicalRecordRequest struct {
	Title   *string `json:"title" binding:"omitempty,min=1"`
	Summary *string `json:"summary"`
	Details *string `json:"details"`
}

// UpdateMedicalRecord changes a record written by the caller.
func (h *MedicalRecordHandler) UpdateMedicalRecord(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	rec, err := h.Records.Update(c.Request.Context(), doctorID, c.Param("id"), services.RecordUpdate{
		Title:   req.Title,
		Summary: req.Summary,
		Details: req.Details,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Medical record updated successfully", rec)
}

// DeleteMedicalRecord removes a record written by the caller.
func (h *MedicalRecordHandler) DeleteMedicalRecord(c *gin.Context) {
	doctorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.Records.Delete(c.Request.Context(), doctorID, c.Param("id")); err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Medical record deleted successfully", nil)
}
