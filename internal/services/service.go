// Package services holds the booking, queue and administration rules.
// Handlers call services; services talk to a repository.Store and never to gin.
package services

import (
	"context"
	"encoding/json"
	"time"

	"hospital-booking-server/internal/cache"
	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/metrics"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository"

	"go.uber.org/zap"
)

// Clock tells the time. Tests pin it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Deps are the collaborators shared by every service.
type Deps struct {
	Store    repository.Store
	Clinic   config.ClinicConfig
	Clock    Clock
	Notifier notify.Notifier
	Cache    cache.QueueCache
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func (d *Deps) init() {
	if d.Clock == nil {
		d.Clock = SystemClock
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Clinic.Location == nil {
		d.Clinic = config.DefaultClinicConfig()
	}
}

// Services bundles every service over one set of dependencies.
type Services struct {
	Auth          *AuthService
	Accounts      *AccountService
	Schedules     *ScheduleService
	Booking       *BookingService
	Queue         *QueueService
	Leave         *LeaveService
	Records       *RecordService
	Audit         *AuditService
	Dashboard     *DashboardService
	Notifications *NotificationService
}

// New wires the services.
func New(d Deps, cfg *config.Config) *Services {
	d.init()
	deps := &d
	return &Services{
		Auth:          &AuthService{deps: deps, cfg: cfg},
		Accounts:      &AccountService{deps: deps},
		Schedules:     &ScheduleService{deps: deps},
		Booking:       &BookingService{deps: deps},
		Queue:         &QueueService{deps: deps},
		Leave:         &LeaveService{deps: deps},
		Records:       &RecordService{deps: deps},
		Audit:         &AuditService{deps: deps},
		Dashboard:     &DashboardService{deps: deps},
		Notifications: &NotificationService{deps: deps},
	}
}

func (d *Deps) now() time.Time {
	return d.Clock.Now()
}

// today is the current civil date in the clinic's timezone.
func (d *Deps) today() string {
	return d.Clock.Now().In(d.Clinic.Location).Format(models.DateLayout)
}

// startOfDay is midnight of date in the clinic's timezone.
func (d *Deps) startOfDay(date string) (time.Time, error) {
	return time.ParseInLocation(models.DateLayout, date, d.Clinic.Location)
}

// publish delivers events after the transaction that produced them has
// committed. Delivery failures are logged and otherwise ignored.
func (d *Deps) publish(ctx context.Context, events ...notify.Event) {
	for _, e := range events {
		if e.OccurredAt.IsZero() {
			e.OccurredAt = d.now()
		}
		if err := d.Notifier.Publish(ctx, e); err != nil {
			d.Log.Warn("notification delivery failed",
				zap.String("kind", string(e.Kind)),
				zap.String("schedule_id", e.ScheduleID),
				zap.Error(err))
		}
	}
}

// audit appends an audit log row inside tx.
func (d *Deps) audit(ctx context.Context, tx repository.Store, actorID, action, targetType, targetID string, meta map[string]interface{}) error {
	entry := &models.AuditLog{
		UserID:     actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Timestamp:  d.now(),
	}
	if len(meta) > 0 {
		raw, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		entry.Metadata = string(raw)
	}
	return tx.AuditLogs().Create(ctx, entry)
}

// message stores a notification for recipient inside tx and returns the
// event to publish once the transaction commits.
func (d *Deps) message(ctx context.Context, tx repository.Store, kind models.NotificationKind, recipientID, appointmentID, subject, content string) (notify.Event, error) {
	n := &models.Notification{
		RecipientID:   recipientID,
		Kind:          kind,
		Subject:       subject,
		Content:       content,
		AppointmentID: models.StrPtr(appointmentID),
		Status:        models.NotificationSent,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return notify.Event{}, err
	}
	return notify.Event{
		Kind:          notify.Kind(kind),
		RecipientID:   recipientID,
		AppointmentID: appointmentID,
		Subject:       subject,
		Message:       content,
		OccurredAt:    d.now(),
	}, nil
}
