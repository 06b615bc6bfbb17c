package services

import (
	"context"
	"testing"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_FillsSeatsThenWaitlists(t *testing.T) {
	f := newFixture(t)
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 1)
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")

	first := f.book(t, alice, sc)
	assert.Equal(t, lifecycle.StatusScheduled, first.Status)
	assert.Equal(t, "house", first.DoctorName)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionCancel, lifecycle.ActionCheckIn}, first.AllowedActions)

	second := f.book(t, bob, sc)
	assert.Equal(t, lifecycle.StatusWaitlist, second.Status)

	stored, err := f.store.Schedules().Get(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BookedPatients)
}

func TestBook_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 5)
	alice := f.user(t, models.RolePatient, "alice")
	f.book(t, alice, sc)

	_, err := f.svc.Booking.Book(ctx, alice.ID, BookingInput{DoctorID: doc.ID, Date: sc.Date, TimePeriod: lifecycle.Morning})
	assert.ErrorIs(t, err, ErrConflict, "duplicate booking")

	_, err = f.svc.Booking.Book(ctx, alice.ID, BookingInput{DoctorID: doc.ID, Date: sc.Date, TimePeriod: lifecycle.Night})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Booking.Book(ctx, alice.ID, BookingInput{DoctorID: doc.ID, Date: "2026-03-01", TimePeriod: lifecycle.Morning})
	assert.ErrorIs(t, err, ErrInvalid)

	leave := f.schedule(t, doc, "2026-03-06", 5)
	leave.Status = lifecycle.ScheduleLeavePending
	require.NoError(t, f.store.Schedules().Update(ctx, leave))
	_, err = f.svc.Booking.Book(ctx, alice.ID, BookingInput{DoctorID: doc.ID, Date: leave.Date, TimePeriod: lifecycle.Morning})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestCancel_PromotesOldestWaitlisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 1)
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")

	seat := f.book(t, alice, sc)
	waiting := f.book(t, bob, sc)

	cancelled, err := f.svc.Booking.Cancel(ctx, alice.ID, seat.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCancelled, cancelled.Status)
	assert.Empty(t, cancelled.AllowedActions)

	assert.Equal(t, lifecycle.StatusScheduled, f.appointment(t, waiting.ID).Status)
	stored, err := f.store.Schedules().Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BookedPatients)

	inbox, err := f.svc.Notifications.List(ctx, bob.ID, timeZero)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotifyWaitlistPromoted, inbox[0].Kind)
	assert.Len(t, f.events.ofKind(notify.KindWaitlistPromoted), 1)

	_, err = f.svc.Booking.Cancel(ctx, alice.ID, seat.ID)
	assert.ErrorIs(t, err, ErrInvalid, "cancelled appointments cannot be cancelled again")
}

func TestCancel_WaitlistedDoesNotFreeSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 1)
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")
	f.book(t, alice, sc)
	waiting := f.book(t, bob, sc)

	_, err := f.svc.Booking.Cancel(ctx, bob.ID, waiting.ID)
	require.NoError(t, err)

	stored, err := f.store.Schedules().Get(ctx, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.BookedPatients)
}

func TestCancel_OtherPatientsAppointment(t *testing.T) {
	f := newFixture(t)
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 1)
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")
	seat := f.book(t, alice, sc)

	_, err := f.svc.Booking.Cancel(context.Background(), bob.ID, seat.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyAction_Admin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, "root")
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, "2026-03-05", 1)
	alice := f.user(t, models.RolePatient, "alice")
	bob := f.user(t, models.RolePatient, "bob")
	seat := f.book(t, alice, sc)
	waiting := f.book(t, bob, sc)

	v, err := f.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, seat.ID, lifecycle.ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, v.Status)

	_, err = f.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, waiting.ID, lifecycle.ActionPromote)
	assert.ErrorIs(t, err, ErrConflict, "no free seat")

	_, err = f.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, seat.ID, lifecycle.ActionCall)
	assert.ErrorIs(t, err, ErrInvalid, "admins cannot call patients")

	_, err = f.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, seat.ID, lifecycle.ActionMarkNoShow)
	require.NoError(t, err)
	infractions, err := f.store.Infractions().List(ctx, alice.ID, models.InfractionNoShow, false)
	require.NoError(t, err)
	assert.Len(t, infractions, 1)

	logs, _, err := f.store.AuditLogs().List(ctx, repository.AuditFilter{Action: "appointment_mark_no_show"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestApplyAction_ReCheckInWithoutTicket(t *testing.T) {
	q := newQueueFixture(t, 2)
	ctx := context.Background()
	admin := q.user(t, models.RoleAdmin, "root")

	v, err := q.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, q.appts[1].ID, lifecycle.ActionMarkNoShow)
	require.NoError(t, err)
	require.Contains(t, v.AllowedActions, lifecycle.ActionReCheckIn)

	_, err = q.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, q.appts[1].ID, lifecycle.ActionReCheckIn)
	assert.ErrorIs(t, err, ErrInvalid, "clinic not open")

	_, err = q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	_, err = q.svc.Queue.CheckIn(ctx, q.patients[0].ID, q.appts[0].ID, models.CheckinOnsite)
	require.NoError(t, err)

	v, err = q.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, q.appts[1].ID, lifecycle.ActionReCheckIn)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCheckedIn, v.Status)
	c := q.checkin(t, q.appts[1].ID)
	assert.Equal(t, "A002", c.TicketNumber)
	assert.Equal(t, models.CheckinWaiting, c.Status)
}

func TestListForPatient_IncludesTicketNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	sc := f.schedule(t, doc, testToday, 3)
	alice := f.user(t, models.RolePatient, "alice")
	appt := f.book(t, alice, sc)
	_, err := f.svc.Queue.CheckIn(ctx, alice.ID, appt.ID, models.CheckinOnline)
	require.NoError(t, err)

	list, err := f.svc.Booking.ListForPatient(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A001", list[0].TicketNumber)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionViewQueue}, list[0].AllowedActions)
}
