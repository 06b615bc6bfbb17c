package services

import (
	"context"
	"time"

	"hospital-booking-server/internal/models"
)

// NotificationService serves a user's inbox.
type NotificationService struct {
	deps *Deps
}

// List returns the user's notifications newer than since, newest first.
// A zero since returns all of them.
func (s *NotificationService) List(ctx context.Context, userID string, since time.Time) ([]models.Notification, error) {
	return s.deps.Store.Notifications().List(ctx, userID, since)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.deps.Store.Notifications().Get(ctx, id)
	if err != nil {
		return nil, missing(err, "Notification not found")
	}
	if n.RecipientID != userID {
		return nil, notFound("Notification not found")
	}
	if n.Status != models.NotificationRead {
		now := s.deps.now()
		n.Status = models.NotificationRead
		n.ReadAt = &now
		if err := s.deps.Store.Notifications().Update(ctx, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}
