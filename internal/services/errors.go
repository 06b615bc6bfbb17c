package services

import (
	"errors"
	"fmt"

	"hospital-booking-server/internal/repository"
)

// Error kinds. Handlers map them onto HTTP status codes.
var (
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error is a failure with a message fit for the API client.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string { return e.Detail }

func (e *Error) Unwrap() error { return e.Kind }

func invalid(format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalid, Detail: fmt.Sprintf(format, args...)}
}

func unauthorized(detail string) error {
	return &Error{Kind: ErrUnauthorized, Detail: detail}
}

func forbidden(detail string) error {
	return &Error{Kind: ErrForbidden, Detail: detail}
}

func notFound(detail string) error {
	return &Error{Kind: ErrNotFound, Detail: detail}
}

func conflict(format string, args ...interface{}) error {
	return &Error{Kind: ErrConflict, Detail: fmt.Sprintf(format, args...)}
}

// missing turns a repository miss into a not-found error with detail.
func missing(err error, detail string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(detail)
	}
	return err
}
