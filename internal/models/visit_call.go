package models

import "time"

type CallType string

const (
	CallTypeCall   CallType = "call"
	CallTypeRecall CallType = "recall"
	CallTypeSkip   CallType = "skip"
)

type CallStatus string

const (
	CallActive   CallStatus = "active"
	CallExpired  CallStatus = "expired"
	CallAttended CallStatus = "attended"
)

// VisitCall records a patient being called into the consulting room.
type VisitCall struct {
	BaseModel
	AppointmentID  string     `gorm:"size:36;index" json:"appointment_id"`
	ScheduleID     string     `gorm:"size:36;index" json:"schedule_id"`
	TicketSequence int        `json:"ticket_sequence"`
	CalledAt       time.Time  `gorm:"index" json:"called_at"`
	CallType       CallType   `gorm:"size:10" json:"call_type"`
	CallStatus     CallStatus `gorm:"size:10;index" json:"call_status"`
}
