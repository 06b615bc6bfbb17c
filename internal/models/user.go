package models

import (
	"time"

	"hospital-booking-server/internal/lifecycle"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Actor maps the role onto the lifecycle permission table.
func (r Role) Actor() lifecycle.Actor {
	return lifecycle.Actor(r)
}

// User represents an admin, doctor or patient account.
// Admins and doctors sign in with LoginID, patients with Email.
type User struct {
	BaseModel
	Name            string     `gorm:"size:100;not null" json:"name"`
	Email           *string    `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	LoginID         *string    `gorm:"uniqueIndex;size:100" json:"login_id,omitempty"`
	Password        string     `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	Role            Role       `gorm:"size:20;index;not null" json:"role"`
	Phone           string     `gorm:"size:20" json:"phone,omitempty"`
	DateOfBirth     string     `gorm:"size:10" json:"dob,omitempty"`
	CardNumber      *string    `gorm:"uniqueIndex;size:50" json:"card_number,omitempty"`
	Specialty       string     `gorm:"size:100;index" json:"specialty,omitempty"`
	IsActive        bool       `gorm:"default:true" json:"is_active"`
	IsSystemAccount bool       `gorm:"default:false" json:"is_system_account"`
	IsSystemAdmin   bool       `gorm:"default:false" json:"is_system_admin"`
	SuspendedUntil  *time.Time `json:"suspended_until,omitempty"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// IsSuspended reports whether online check-in is blocked on day.
func (u *User) IsSuspended(day time.Time) bool {
	if u.SuspendedUntil == nil {
		return false
	}
	return !u.SuspendedUntil.Before(day)
}

// DisplayName is the "Name (Role)" form used in audit listings.
func (u *User) DisplayName() string {
	return u.Name + " (" + string(u.Role) + ")"
}

// StrPtr returns nil for an empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StrVal dereferences s, treating nil as empty.
func StrVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
