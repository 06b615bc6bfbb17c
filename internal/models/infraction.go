package models

import "time"

type InfractionType string

const (
	InfractionNoShow     InfractionType = "no_show"
	InfractionLateCancel InfractionType = "late_cancel"
	InfractionOther      InfractionType = "other"
)

// Infraction is a recorded patient rule violation.
type Infraction struct {
	BaseModel
	PatientID      string         `gorm:"size:36;index" json:"patient_id"`
	AppointmentID  *string        `gorm:"size:36" json:"appointment_id,omitempty"`
	Type           InfractionType `gorm:"size:20;index" json:"infraction_type"`
	OccurredAt     time.Time      `json:"occurred_at"`
	PenaltyApplied bool           `gorm:"default:false" json:"penalty_applied"`
	PenaltyUntil   *time.Time     `json:"penalty_until,omitempty"`
	Notes          string         `gorm:"type:text" json:"notes,omitempty"`
}
