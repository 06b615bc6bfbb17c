// Package notify fans queue and appointment events out to best-effort
// channels: the application log, a Redis stream and an MQTT display board.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Kind identifies an event.
type Kind string

const (
	KindQueueReminder        Kind = "queue_reminder"
	KindBoardUpdate          Kind = "board_update"
	KindLeaveDecision        Kind = "leave_decision"
	KindAppointmentCancelled Kind = "appointment_cancelled"
	KindWaitlistPromoted     Kind = "waitlist_promoted"
)

// Event is a notification about a clinic session or an appointment.
type Event struct {
	Kind          Kind      `json:"kind"`
	RecipientID   string    `json:"recipient_id,omitempty"`
	ScheduleID    string    `json:"schedule_id,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Message       string    `json:"message,omitempty"`
	CurrentNumber string    `json:"current_number,omitempty"`
	WaitingCount  int       `json:"waiting_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers events.
type Notifier interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// LogNotifier writes events to the application log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Publish(_ context.Context, e Event) error {
	n.log.Info("notification",
		zap.String("kind", string(e.Kind)),
		zap.String("recipient_id", e.RecipientID),
		zap.String("schedule_id", e.ScheduleID),
		zap.String("appointment_id", e.AppointmentID),
		zap.String("message", e.Message),
	)
	return nil
}
