package services

import (
	"context"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
)

// RecordInput is a medical record written by a doctor.
type RecordInput struct {
	PatientID     string
	AppointmentID string
	Title         string
	Summary       string
	Details       string
}

// RecordUpdate changes the non-nil fields of a medical record.
type RecordUpdate struct {
	Title   *string
	Summary *string
	Details *string
}

// RecordService manages consultation records.
type RecordService struct {
	deps *Deps
}

// Create stores a record authored by doctorID.
func (s *RecordService) Create(ctx context.Context, doctorID string, in RecordInput) (*models.MedicalRecord, error) {
	rec := &models.MedicalRecord{
		PatientID:     in.PatientID,
		DoctorID:      doctorID,
		AppointmentID: models.StrPtr(in.AppointmentID),
		RecordDate:    s.deps.now(),
		Title:         in.Title,
		Summary:       in.Summary,
		Details:       in.Details,
	}
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		patient, err := tx.Users().Get(ctx, in.PatientID)
		if err != nil || patient.Role != models.RolePatient {
			if err != nil {
				return missing(err, "Patient not found")
			}
			return notFound("Patient not found")
		}
		if in.AppointmentID != "" {
			appt, err := tx.Appointments().Get(ctx, in.AppointmentID)
			if err != nil {
				return missing(err, "Appointment not found")
			}
			if appt.PatientID != in.PatientID {
				return invalid("Appointment does not belong to this patient")
			}
		}
		if err := tx.MedicalRecords().Create(ctx, rec); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "medical_record_created", "medical_record", rec.ID, map[string]interface{}{
			"patient_id": in.PatientID,
		})
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the records visible to the caller. Doctors see their own
// records, patients theirs, admins everything.
func (s *RecordService) List(ctx context.Context, userID string, role models.Role, patientID string) ([]models.MedicalRecord, error) {
	f := repository.MedicalRecordFilter{PatientID: patientID}
	switch role {
	case models.RoleDoctor:
		f.DoctorID = userID
	case models.RolePatient:
		f.PatientID = userID
	}
	return s.deps.Store.MedicalRecords().List(ctx, f)
}

// Get returns one record if the caller may read it.
func (s *RecordService) Get(ctx context.Context, userID string, role models.Role, id string) (*models.MedicalRecord, error) {
	rec, err := s.deps.Store.MedicalRecords().Get(ctx, id)
	if err != nil {
		return nil, missing(err, "Medical record not found")
	}
	switch {
	case role == models.RoleAdmin, role == models.RoleDoctor:
	case role == models.RolePatient && rec.PatientID == userID:
	default:
		return nil, forbidden("You are not authorized to view this medical record")
	}
	return rec, nil
}

// Update changes a record. Only the authoring doctor may do so.
func (s *RecordService) Update(ctx context.Context, doctorID, id string, in RecordUpdate) (*models.MedicalRecord, error) {
	var rec *models.MedicalRecord
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		if rec, err = s.authored(ctx, tx, doctorID, id); err != nil {
			return err
		}
		if in.Title != nil {
			rec.Title = *in.Title
		}
		if in.Summary != nil {
			rec.Summary = *in.Summary
		}
		if in.Details != nil {
			rec.Details = *in.Details
		}
		if err := tx.MedicalRecords().Update(ctx, rec); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "medical_record_updated", "medical_record", id, nil)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Only the authoring doctor may do so.
func (s *RecordService) Delete(ctx context.Context, doctorID, id string) error {
	return s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.authored(ctx, tx, doctorID, id); err != nil {
			return err
		}
		if err := tx.MedicalRecords().Delete(ctx, id); err != nil {
			return missing(err, "Medical record not found")
		}
		return s.deps.audit(ctx, tx, doctorID, "medical_record_deleted", "medical_record", id, nil)
	})
}

func (s *RecordService) authored(ctx context.Context, tx repository.Store, doctorID, id string) (*models.MedicalRecord, error) {
	rec, err := tx.MedicalRecords().Get(ctx, id)
	if err != nil {
		return nil, missing(err, "Medical record not found")
	}
	if rec.DoctorID != doctorID {
		return nil, forbidden("Only the authoring doctor can change this medical record")
	}
	return rec, nil
}
