package services

import (
	"context"
	"testing"

	"hospital-booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicalRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	other := f.user(t, models.RoleDoctor, "wilson")
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")
	appt := f.book(t, alice, f.schedule(t, doc, testToday, 5))

	_, err := f.svc.Records.Create(ctx, doc.ID, RecordInput{PatientID: bob.ID, AppointmentID: appt.ID, Title: "x"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.Records.Create(ctx, doc.ID, RecordInput{PatientID: doc.ID, Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := f.svc.Records.Create(ctx, doc.ID, RecordInput{
		PatientID:     alice.ID,
		AppointmentID: appt.ID,
		Title:         "Follow-up",
		Summary:       "Stable",
	})
	require.NoError(t, err)

	mine, err := f.svc.Records.List(ctx, alice.ID, models.RolePatient, bob.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1, "patients only see their own records")
	theirs, err := f.svc.Records.List(ctx, other.ID, models.RoleDoctor, "")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = f.svc.Records.Get(ctx, bob.ID, models.RolePatient, rec.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Records.Get(ctx, alice.ID, models.RolePatient, rec.ID)
	assert.NoError(t, err)

	summary := "Improving"
	_, err = f.svc.Records.Update(ctx, other.ID, rec.ID, RecordUpdate{Summary: &summary})
	assert.ErrorIs(t, err, ErrForbidden)
	updated, err := f.svc.Records.Update(ctx, doc.ID, rec.ID, RecordUpdate{Summary: &summary})
	require.NoError(t, err)
	assert.Equal(t, "Improving", updated.Summary)
	assert.Equal(t, "Follow-up", updated.Title)

	assert.ErrorIs(t, f.svc.Records.Delete(ctx, other.ID, rec.ID), ErrForbidden)
	require.NoError(t, f.svc.Records.Delete(ctx, doc.ID, rec.ID))
	_, err = f.svc.Records.Get(ctx, doc.ID, models.RoleDoctor, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotificationsMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")
	sc := f.schedule(t, doc, testToday, 1)
	first := f.book(t, alice, sc)
	f.book(t, bob, sc)
	_, err := f.svc.Booking.Cancel(ctx, alice.ID, first.ID)
	require.NoError(t, err)

	inbox, err := f.svc.Notifications.List(ctx, bob.ID, timeZero)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotifyWaitlistPromoted, inbox[0].Kind)

	_, err = f.svc.Notifications.MarkRead(ctx, alice.ID, inbox[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := f.svc.Notifications.MarkRead(ctx, bob.ID, inbox[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationRead, n.Status)
	require.NotNil(t, n.ReadAt)
}
