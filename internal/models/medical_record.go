package models

import (
	"time"
)

// MedicalRecord is a consultation note written by a doctor.
type MedicalRecord struct {
	BaseModel
	PatientID     string    `gorm:"size:36;index" json:"patient_id"`
	DoctorID      string    `gorm:"size:36;index" json:"doctor_id"`
	AppointmentID *string   `gorm:"size:36;index" json:"appointment_id,omitempty"`
	RecordDate    time.Time `json:"record_date"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Summary       string    `gorm:"type:text" json:"summary"`
	Details       string    `gorm:"type:text" json:"details"`
}
