package client

import (
	"errors"
	"regexp"
)

// Registration is the patient sign-up form.
type Registration struct {
	Name            string `json:"name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	DateOfBirth     string `json:"dob"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	CardNumber      string `json:"card_number"`
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^09\d{8}$`)
)

// Messages of the client-side registration checks.
var (
	ErrPasswordMismatch = errors.New("Passwords do not match")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters")
	ErrInvalidEmail     = errors.New("Invalid email format")
	ErrInvalidPhone     = errors.New("Phone number must be in the format 09xxxxxxxx")
)

// ValidateRegistration runs the checks the sign-up form performs before
// submitting, in order, and returns the first failure.
func ValidateRegistration(r Registration) error {
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if len(r.Password) < 6 {
		return ErrPasswordTooShort
	}
	if !emailPattern.MatchString(r.Email) {
		return ErrInvalidEmail
	}
	if !phonePattern.MatchString(r.Phone) {
		return ErrInvalidPhone
	}
	return nil
}
