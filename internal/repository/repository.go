// Package repository defines the persistence contract used by the services
// and its gorm implementation. The in-memory implementation lives in
// repository/memory.
package repository

import (
	"context"
	"errors"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique key.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories and runs transactions across them.
type Store interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Schedules() ScheduleRepository
	Appointments() AppointmentRepository
	Checkins() CheckinRepository
	RoomDays() RoomDayRepository
	VisitCalls() VisitCallRepository
	LeaveRequests() LeaveRequestRepository
	Infractions() InfractionRepository
	MedicalRecords() MedicalRecordRepository
	AuditLogs() AuditLogRepository
	Notifications() NotificationRepository

	// Transaction runs fn against a transactional view of the store.
	// Returning an error from fn rolls every change back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// UserField names a unique user column that can be looked up.
type UserField string

const (
	UserEmail      UserField = "email"
	UserLoginID    UserField = "login_id"
	UserCardNumber UserField = "card_number"
)

type UserFilter struct {
	Role      models.Role
	Specialty string
	IDs       []string
	Skip      int
	Limit     int
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.User, error)
	// FindByLogin matches a login id or an email address.
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindBy(ctx context.Context, field UserField, value string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	Update(ctx context.Context, t *models.RefreshToken) error
	// FindUsable returns an unrevoked, unexpired token. An empty userID matches any owner.
	FindUsable(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error)
}

type ScheduleFilter struct {
	DoctorIDs        []string
	RecurringGroupID string
	Date             string
	DateFrom         string
	DateTo           string
	TimePeriod       lifecycle.TimePeriod
	Specialty        string
	Statuses         []lifecycle.ScheduleStatus
	Skip             int
	Limit            int
}

type ScheduleRepository interface {
	Create(ctx context.Context, s *models.Schedule) error
	Update(ctx context.Context, s *models.Schedule) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Schedule, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Schedule, error)
	FindSlot(ctx context.Context, doctorID, date string, period lifecycle.TimePeriod, lock bool) (*models.Schedule, error)
	List(ctx context.Context, f ScheduleFilter) ([]models.Schedule, error)
}

type AppointmentFilter struct {
	PatientID  string
	DoctorID   string
	ScheduleID string
	Date       string
	Statuses   []lifecycle.AppointmentStatus
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *models.Appointment) error
	Update(ctx context.Context, a *models.Appointment) error
	Get(ctx context.Context, id string) (*models.Appointment, error)
	// List orders by date then creation time.
	List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error)
}

type CheckinFilter struct {
	ScheduleID    string
	Statuses      []models.CheckinStatus
	AfterSequence int
}

type CheckinRepository interface {
	Create(ctx context.Context, c *models.Checkin) error
	Update(ctx context.Context, c *models.Checkin) error
	Get(ctx context.Context, id string) (*models.Checkin, error)
	GetByAppointment(ctx context.Context, appointmentID string) (*models.Checkin, error)
	FindBySequence(ctx context.Context, scheduleID string, seq int) (*models.Checkin, error)
	// List orders by ticket sequence.
	List(ctx context.Context, f CheckinFilter) ([]models.Checkin, error)
}

type RoomDayRepository interface {
	Create(ctx context.Context, r *models.RoomDay) error
	Update(ctx context.Context, r *models.RoomDay) error
	Delete(ctx context.Context, scheduleID string) error
	Get(ctx context.Context, scheduleID string) (*models.RoomDay, error)
	GetForUpdate(ctx context.Context, scheduleID string) (*models.RoomDay, error)
}

type VisitCallRepository interface {
	Create(ctx context.Context, v *models.VisitCall) error
	Update(ctx context.Context, v *models.VisitCall) error
	// ListActive returns active calls; empty appointmentID and zero calledBefore do not filter.
	ListActive(ctx context.Context, appointmentID string, calledBefore time.Time) ([]models.VisitCall, error)
}

type LeaveRequestRepository interface {
	// Save inserts the request when it has no id and updates it otherwise.
	Save(ctx context.Context, l *models.LeaveRequest) error
	GetBySchedule(ctx context.Context, scheduleID string) (*models.LeaveRequest, error)
	List(ctx context.Context, status models.LeaveStatus) ([]models.LeaveRequest, error)
}

type InfractionRepository interface {
	Create(ctx context.Context, i *models.Infraction) error
	Update(ctx context.Context, i *models.Infraction) error
	List(ctx context.Context, patientID string, typ models.InfractionType, unpenalizedOnly bool) ([]models.Infraction, error)
}

type MedicalRecordFilter struct {
	PatientID string
	DoctorID  string
}

type MedicalRecordRepository interface {
	Create(ctx context.Context, m *models.MedicalRecord) error
	Update(ctx context.Context, m *models.MedicalRecord) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.MedicalRecord, error)
	List(ctx context.Context, f MedicalRecordFilter) ([]models.MedicalRecord, error)
}

type AuditFilter struct {
	UserIDContains string
	Action         string
	From           time.Time
	To             time.Time
	Skip           int
	Limit          int
}

type AuditLogRepository interface {
	Create(ctx context.Context, l *models.AuditLog) error
	// List returns one page, newest first, and the total match count.
	List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	Update(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	// List returns a recipient's notifications newer than since, newest first.
	List(ctx context.Context, recipientID string, since time.Time) ([]models.Notification, error)
}
