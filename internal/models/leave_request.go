package models

import "time"

type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveRequest is a doctor's request to take a schedule off.
type LeaveRequest struct {
	BaseModel
	ScheduleID          string      `gorm:"size:36;uniqueIndex" json:"schedule_id"`
	DoctorID            string      `gorm:"size:36;index" json:"doctor_id"`
	Reason              string      `gorm:"type:text" json:"reason"`
	Status              LeaveStatus `gorm:"size:20;default:'pending'" json:"status"`
	PreviousMaxPatients int         `json:"previous_max_patients"`
	ReviewedBy          *string     `gorm:"size:36" json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time  `json:"reviewed_at,omitempty"`
}

// LeaveRequestView is a pending leave request with its slot and doctor.
type LeaveRequestView struct {
	LeaveRequest
	Date       string `json:"date"`
	TimePeriod string `json:"time_period"`
	DoctorName string `json:"doctor_name"`
	Specialty  string `json:"specialty"`
}
