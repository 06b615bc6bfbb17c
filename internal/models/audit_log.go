package models

import "time"

// SystemActor is the audit user id recorded for background jobs.
const SystemActor = "System"

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	BaseModel
	UserID     string    `gorm:"size:36;index" json:"user_id"`
	Action     string    `gorm:"size:100;index" json:"action"`
	TargetID   string    `gorm:"size:36" json:"target_id,omitempty"`
	TargetType string    `gorm:"size:50" json:"target_type,omitempty"`
	Metadata   string    `gorm:"type:text" json:"details,omitempty"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

// AuditLogView adds the resolved display name of the actor.
type AuditLogView struct {
	AuditLog
	UserName string `json:"user_name"`
}
