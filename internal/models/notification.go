package models

import (
	"time"
)

// NotificationKind says what a notification is about.
type NotificationKind string

const (
	NotifyQueueReminder        NotificationKind = "queue_reminder"
	NotifyLeaveDecision        NotificationKind = "leave_decision"
	NotifyAppointmentCancelled NotificationKind = "appointment_cancelled"
	NotifyWaitlistPromoted     NotificationKind = "waitlist_promoted"
)

// NotificationStatus represents the status of a notification
type NotificationStatus string

const (
	NotificationSent NotificationStatus = "sent"
	NotificationRead NotificationStatus = "read"
)

// Notification is a message from the system to one user.
type Notification struct {
	BaseModel
	RecipientID   string             `gorm:"size:36;index" json:"recipient_id"`
	Kind          NotificationKind   `gorm:"size:30" json:"kind"`
	Subject       string             `gorm:"type:text" json:"subject"`
	Content       string             `gorm:"type:text" json:"content"`
	AppointmentID *string            `gorm:"size:36" json:"appointment_id,omitempty"`
	Status        NotificationStatus `gorm:"size:20;default:'sent'" json:"status"`
	ReadAt        *time.Time         `json:"read_at,omitempty"`
}
