package services

import (
	"context"
	"time"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"

	"go.uber.org/zap"
)

// recordNoShow stores a no-show infraction and suspends the patient once
// the unpenalized no-shows reach the configured threshold.
func (d *Deps) recordNoShow(ctx context.Context, tx repository.Store, patientID, appointmentID, notes string) (bool, error) {
	inf := &models.Infraction{
		PatientID:     patientID,
		AppointmentID: models.StrPtr(appointmentID),
		Type:          models.InfractionNoShow,
		OccurredAt:    d.now(),
		Notes:         notes,
	}
	if err := tx.Infractions().Create(ctx, inf); err != nil {
		return false, err
	}

	pending, err := tx.Infractions().List(ctx, patientID, models.InfractionNoShow, true)
	if err != nil {
		return false, err
	}
	if d.Clinic.NoShowPenaltyThreshold <= 0 || len(pending) < d.Clinic.NoShowPenaltyThreshold {
		return false, nil
	}

	until, err := d.penaltyEnd()
	if err != nil {
		return false, err
	}
	patient, err := tx.Users().Get(ctx, patientID)
	if err != nil {
		return false, err
	}
	patient.SuspendedUntil = &until
	if err := tx.Users().Update(ctx, patient); err != nil {
		return false, err
	}
	for i := range pending {
		pending[i].PenaltyApplied = true
		pending[i].PenaltyUntil = &until
		if err := tx.Infractions().Update(ctx, &pending[i]); err != nil {
			return false, err
		}
	}

	d.Log.Info("patient suspended for repeated no-shows",
		zap.String("patient_id", patientID),
		zap.Int("no_shows", len(pending)),
		zap.Time("until", until))
	return true, d.audit(ctx, tx, models.SystemActor, "patient_suspended", "patient", patientID, map[string]interface{}{
		"no_shows":        len(pending),
		"suspended_until": until.Format(models.DateLayout),
	})
}

// penaltyEnd is the start of the day the penalty period ends.
func (d *Deps) penaltyEnd() (time.Time, error) {
	start, err := d.startOfDay(d.today())
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, d.Clinic.NoShowPenaltyDays), nil
}
