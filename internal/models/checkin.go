package models

import (
	"fmt"
	"time"
)

// CheckinMethod is how the patient checked in.
type CheckinMethod string

const (
	CheckinOnline CheckinMethod = "online"
	CheckinOnsite CheckinMethod = "onsite"
)

// CheckinStatus tracks a ticket in the clinic queue.
type CheckinStatus string

const (
	CheckinWaiting CheckinStatus = "checked_in"
	CheckinSeen    CheckinStatus = "seen"
	CheckinNoShow  CheckinStatus = "no_show"
)

// Checkin is a queue ticket issued at check-in.
type Checkin struct {
	BaseModel
	AppointmentID  string        `gorm:"size:36;uniqueIndex" json:"appointment_id"`
	PatientID      string        `gorm:"size:36;index" json:"patient_id"`
	ScheduleID     string        `gorm:"size:36;index" json:"schedule_id"`
	CheckinTime    time.Time     `json:"checkin_time"`
	Method         CheckinMethod `gorm:"size:10" json:"checkin_method"`
	TicketSequence int           `gorm:"index" json:"ticket_sequence"`
	TicketNumber   string        `gorm:"size:10" json:"ticket_number"`
	Status         CheckinStatus `gorm:"size:20;default:'checked_in'" json:"status"`
}

// SetSequence assigns the ticket sequence and its display number.
func (c *Checkin) SetSequence(seq int) {
	c.TicketSequence = seq
	c.TicketNumber = TicketNumber(seq)
}

// TicketNumber formats a queue sequence for display, A001 and so on.
func TicketNumber(seq int) string {
	return fmt.Sprintf("A%03d", seq)
}
