package services

import (
	"context"
	"testing"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueFixture books n patients into today's morning session of one doctor.
type queueFixture struct {
	*fixture
	doctor   *models.User
	schedule *models.Schedule
	patients []*models.User
	appts    []*models.AppointmentView
}

func newQueueFixture(t *testing.T, n int) *queueFixture {
	t.Helper()
	q := &queueFixture{fixture: newFixture(t)}
	q.doctor = q.user(t, models.RoleDoctor, "house")
	q.schedule = q.fixture.schedule(t, q.doctor, testToday, 10)
	for i := 0; i < n; i++ {
		p := q.user(t, models.RolePatient, string(rune('a'+i))+"-patient")
		q.patients = append(q.patients, p)
		q.appts = append(q.appts, q.book(t, p, q.schedule))
	}
	return q
}

func (q *queueFixture) checkInAll(t *testing.T) {
	t.Helper()
	for i, p := range q.patients {
		_, err := q.svc.Queue.CheckIn(context.Background(), p.ID, q.appts[i].ID, models.CheckinOnsite)
		require.NoError(t, err)
	}
}

func TestCheckIn_IssuesSequentialTickets(t *testing.T) {
	q := newQueueFixture(t, 2)
	ctx := context.Background()

	first, err := q.svc.Queue.CheckIn(ctx, q.patients[0].ID, q.appts[0].ID, models.CheckinOnline)
	require.NoError(t, err)
	second, err := q.svc.Queue.CheckIn(ctx, q.patients[1].ID, q.appts[1].ID, models.CheckinOnsite)
	require.NoError(t, err)

	assert.Equal(t, "A001", first.TicketNumber)
	assert.Equal(t, "A002", second.TicketNumber)
	assert.Equal(t, lifecycle.StatusCheckedIn, q.appointment(t, q.appts[0].ID).Status)
	assert.Equal(t, models.CheckinOnsite, q.checkin(t, q.appts[1].ID).Method)

	_, err = q.svc.Queue.CheckIn(ctx, q.patients[0].ID, q.appts[0].ID, models.CheckinOnline)
	assert.ErrorIs(t, err, ErrInvalid, "already checked in")
}

func TestCheckIn_Rejections(t *testing.T) {
	q := newQueueFixture(t, 2)
	ctx := context.Background()

	_, err := q.svc.Queue.CheckIn(ctx, q.patients[1].ID, q.appts[0].ID, models.CheckinOnline)
	assert.ErrorIs(t, err, ErrForbidden, "someone else's appointment")

	future := q.fixture.schedule(t, q.doctor, "2026-03-09", 10)
	later := q.book(t, q.patients[0], future)
	_, err = q.svc.Queue.CheckIn(ctx, q.patients[0].ID, later.ID, models.CheckinOnline)
	assert.ErrorIs(t, err, ErrInvalid, "not today")

	appt := q.appointment(t, q.appts[1].ID)
	appt.Status = lifecycle.StatusNoShow
	require.NoError(t, q.store.Appointments().Update(ctx, appt))
	_, err = q.svc.Queue.CheckIn(ctx, q.patients[0].ID, appt.ID, models.CheckinOnsite)
	assert.ErrorIs(t, err, ErrForbidden, "ownership is checked before status")
	_, err = q.svc.Queue.CheckIn(ctx, q.patients[1].ID, appt.ID, models.CheckinOnsite)
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "contact the clinic")
}

func TestCheckIn_SuspendedPatientMustCheckInOnsite(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	p := q.patients[0]
	until, err := time.ParseInLocation(models.DateLayout, testToday, q.clinic.Location)
	require.NoError(t, err)
	p.SuspendedUntil = &until
	require.NoError(t, q.store.Users().Update(ctx, p))

	_, err = q.svc.Queue.CheckIn(ctx, p.ID, q.appts[0].ID, models.CheckinOnline)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), testToday)

	res, err := q.svc.Queue.CheckIn(ctx, p.ID, q.appts[0].ID, models.CheckinOnsite)
	require.NoError(t, err)
	assert.Equal(t, "A001", res.TicketNumber)
}

func TestQueueStatus(t *testing.T) {
	q := newQueueFixture(t, 3)
	ctx := context.Background()

	_, err := q.svc.Queue.QueueStatus(ctx, q.patients[2].ID, q.appts[2].ID)
	assert.ErrorIs(t, err, ErrNotFound, "clinic not open")

	_, err = q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)

	status, err := q.svc.Queue.QueueStatus(ctx, q.patients[2].ID, q.appts[2].ID)
	require.NoError(t, err)
	assert.False(t, status.CheckedIn)
	assert.Equal(t, "A000", status.CurrentNumber)

	q.checkInAll(t)
	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)

	status, err = q.svc.Queue.QueueStatus(ctx, q.patients[2].ID, q.appts[2].ID)
	require.NoError(t, err)
	assert.True(t, status.CheckedIn)
	assert.Equal(t, "A001", status.CurrentNumber)
	assert.Equal(t, "A003", status.MyPosition)
	assert.Equal(t, 1, status.WaitingCount)
	assert.Equal(t, 10, status.EstimatedWaitTime)

	status, err = q.svc.Queue.QueueStatus(ctx, q.patients[0].ID, q.appts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.WaitingCount)
	assert.Contains(t, status.StatusMessage, "your turn")

	_, err = q.svc.Queue.QueueStatus(ctx, q.patients[0].ID, q.appts[2].ID)
	assert.ErrorIs(t, err, ErrForbidden, "other patient's appointment")
}

func TestCallNext_CallsAndReminds(t *testing.T) {
	q := newQueueFixture(t, 3)
	ctx := context.Background()
	_, err := q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	assert.ErrorIs(t, err, ErrInvalid, "clinic not open")

	_, err = q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)

	res, err := q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "A001", res.TicketNumber)
	assert.Contains(t, res.Message, "A001")

	assert.Equal(t, models.CheckinSeen, q.checkin(t, q.appts[0].ID).Status)
	assert.Equal(t, lifecycle.StatusCalled, q.appointment(t, q.appts[0].ID).Status)
	calls, err := q.store.VisitCalls().ListActive(ctx, q.appts[0].ID, timeZero)
	require.NoError(t, err)
	assert.Len(t, calls, 1)

	reminders := q.events.ofKind(notify.KindQueueReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, q.patients[2].ID, reminders[0].RecipientID)
	assert.Contains(t, reminders[0].Message, "Your ticket number is A003")

	board := q.events.ofKind(notify.KindBoardUpdate)
	require.NotEmpty(t, board)
	last := board[len(board)-1]
	assert.Equal(t, "A001", last.CurrentNumber)
	assert.Equal(t, 2, last.WaitingCount)

	status, err := q.svc.Queue.DoctorQueueStatus(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.WaitingCount)
	assert.Equal(t, lifecycle.ScheduleOpen, status.ClinicStatus)

	waiting, err := q.svc.Queue.WaitingPatients(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	require.Len(t, waiting, 3)
	assert.Equal(t, models.CheckinSeen, waiting[0].Status)
	assert.Equal(t, "c-patient", waiting[2].PatientName)
}

func TestDoctorQueue_ScheduleChecks(t *testing.T) {
	q := newQueueFixture(t, 0)
	ctx := context.Background()
	other := q.user(t, models.RoleDoctor, "wilson")

	_, err := q.svc.Queue.DoctorQueueStatus(ctx, other.ID, q.schedule.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	tomorrow := q.fixture.schedule(t, q.doctor, "2026-03-03", 10)
	_, err = q.svc.Queue.OpenClinic(ctx, q.doctor.ID, tomorrow.ID)
	assert.ErrorIs(t, err, ErrInvalid)

	status, err := q.svc.Queue.DoctorQueueStatus(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, "N/A", status.CurrentNumber)
	assert.Equal(t, lifecycle.ScheduleClosed, status.ClinicStatus)

	waiting, err := q.svc.Queue.WaitingPatients(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestCloseClinic_DropsQueue(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)

	require.NoError(t, q.svc.Queue.CloseClinic(ctx, q.doctor.ID, q.schedule.ID))

	sc, err := q.store.Schedules().Get(ctx, q.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.ScheduleClosed, sc.Status)
	_, err = q.svc.Queue.QueueStatus(ctx, q.patients[0].ID, q.appts[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReCheckIn_InsertsAfterThirdWaitingPatient(t *testing.T) {
	q := newQueueFixture(t, 6)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)
	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)

	missed := q.checkin(t, q.appts[1].ID)
	_, err = q.svc.Queue.MarkNoShow(ctx, q.doctor.ID, q.schedule.ID, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusNoShow, q.appointment(t, q.appts[1].ID).Status)

	res, err := q.svc.Queue.ReCheckIn(ctx, q.doctor.ID, q.schedule.ID, missed.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, res.TicketSequence)
	assert.Equal(t, "A006", res.TicketNumber)

	last := q.checkin(t, q.appts[5].ID)
	assert.Equal(t, 7, last.TicketSequence)
	assert.Equal(t, "A007", last.TicketNumber)
	assert.Equal(t, 5, q.checkin(t, q.appts[4].ID).TicketSequence)
	assert.Equal(t, lifecycle.StatusCheckedIn, q.appointment(t, q.appts[1].ID).Status)

	room, err := q.store.RoomDays().Get(ctx, q.schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, room.NextSequence)
}

func TestReCheckIn_ShiftsNoShowTicketsToo(t *testing.T) {
	q := newQueueFixture(t, 6)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)

	second := q.checkin(t, q.appts[1].ID)
	_, err = q.svc.Queue.MarkNoShow(ctx, q.doctor.ID, q.schedule.ID, second.ID)
	require.NoError(t, err)
	_, err = q.svc.Queue.MarkNoShow(ctx, q.doctor.ID, q.schedule.ID, q.checkin(t, q.appts[5].ID).ID)
	require.NoError(t, err)

	res, err := q.svc.Queue.ReCheckIn(ctx, q.doctor.ID, q.schedule.ID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TicketSequence)

	seen := map[int]string{}
	for _, a := range q.appts {
		c := q.checkin(t, a.ID)
		prev, dup := seen[c.TicketSequence]
		assert.False(t, dup, "ticket %d held by %s and %s", c.TicketSequence, prev, a.ID)
		seen[c.TicketSequence] = a.ID
	}
	assert.Equal(t, 6, q.checkin(t, q.appts[4].ID).TicketSequence)
	assert.Equal(t, 7, q.checkin(t, q.appts[5].ID).TicketSequence)

	for i := 0; i < 7; i++ {
		_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
		require.NoError(t, err)
	}
	for _, a := range q.appts[:5] {
		assert.Equal(t, lifecycle.StatusCalled, q.appointment(t, a.ID).Status)
	}
	assert.Equal(t, lifecycle.StatusNoShow, q.appointment(t, q.appts[5].ID).Status)
}

func TestReCheckIn_AppendsToShortQueue(t *testing.T) {
	q := newQueueFixture(t, 3)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)

	first := q.checkin(t, q.appts[0].ID)
	_, err = q.svc.Queue.ReCheckIn(ctx, q.doctor.ID, q.schedule.ID, first.ID)
	assert.ErrorIs(t, err, ErrInvalid, "not a no-show")

	_, err = q.svc.Queue.MarkNoShow(ctx, q.doctor.ID, q.schedule.ID, first.ID)
	require.NoError(t, err)
	res, err := q.svc.Queue.ReCheckIn(ctx, q.doctor.ID, q.schedule.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "A004", res.TicketNumber)
}

func TestManualCheckIn(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	appt := q.appts[0]

	_, err := q.svc.Queue.ManualCheckIn(ctx, q.doctor.ID, q.schedule.ID, appt.ID)
	assert.ErrorIs(t, err, ErrInvalid, "clinic not open")

	_, err = q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	res, err := q.svc.Queue.ManualCheckIn(ctx, q.doctor.ID, q.schedule.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "A001", res.TicketNumber)
	assert.Equal(t, models.CheckinOnsite, q.checkin(t, appt.ID).Method)

	_, err = q.svc.Queue.ManualCheckIn(ctx, q.doctor.ID, q.schedule.ID, appt.ID)
	assert.ErrorIs(t, err, ErrInvalid, "already checked in")

	c := q.checkin(t, appt.ID)
	_, err = q.svc.Queue.MarkNoShow(ctx, q.doctor.ID, q.schedule.ID, c.ID)
	require.NoError(t, err)
	res, err = q.svc.Queue.ManualCheckIn(ctx, q.doctor.ID, q.schedule.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, "A002", res.TicketNumber)
}

func TestManualCheckIn_NoShowWithoutTicket(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	admin := q.user(t, models.RoleAdmin, "root")
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	_, err = q.svc.Booking.ApplyAction(ctx, admin.ID, models.RoleAdmin, q.appts[0].ID, lifecycle.ActionMarkNoShow)
	require.NoError(t, err)

	res, err := q.svc.Queue.ManualCheckIn(ctx, q.doctor.ID, q.schedule.ID, q.appts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A001", res.TicketNumber)
	assert.Equal(t, lifecycle.StatusCheckedIn, q.appointment(t, q.appts[0].ID).Status)
}

func TestComplete(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)

	_, err = q.svc.Queue.Complete(ctx, q.doctor.ID, q.schedule.ID, q.appts[0].ID)
	assert.ErrorIs(t, err, ErrInvalid, "not called yet")

	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	v, err := q.svc.Queue.Complete(ctx, q.doctor.ID, q.schedule.ID, q.appts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, v.Status)

	calls, err := q.store.VisitCalls().ListActive(ctx, q.appts[0].ID, timeZero)
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestSweepNoShows_SuspendsAtThreshold(t *testing.T) {
	q := newQueueFixture(t, 2)
	ctx := context.Background()
	p := q.patients[0]
	for i := 0; i < 2; i++ {
		require.NoError(t, q.store.Infractions().Create(ctx, &models.Infraction{
			PatientID:  p.ID,
			Type:       models.InfractionNoShow,
			OccurredAt: q.clock.Now().AddDate(0, 0, -i-1),
		}))
	}
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)
	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)

	marked, err := q.svc.Queue.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked, "still within the grace period")

	q.clock.Advance(4 * time.Minute)
	marked, err = q.svc.Queue.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	assert.Equal(t, lifecycle.StatusNoShow, q.appointment(t, q.appts[0].ID).Status)
	assert.Equal(t, models.CheckinNoShow, q.checkin(t, q.appts[0].ID).Status)

	suspended, err := q.store.Users().Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, suspended.SuspendedUntil)
	assert.Equal(t, "2026-08-29", suspended.SuspendedUntil.In(q.clinic.Location).Format(models.DateLayout))

	pending, err := q.store.Infractions().List(ctx, p.ID, models.InfractionNoShow, true)
	require.NoError(t, err)
	assert.Empty(t, pending)

	marked, err = q.svc.Queue.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked, "calls are expired once handled")
}

func TestSweepNoShows_IgnoresAttendedCalls(t *testing.T) {
	q := newQueueFixture(t, 1)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	q.checkInAll(t)
	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	_, err = q.svc.Queue.StartConsult(ctx, q.doctor.ID, q.schedule.ID, q.appts[0].ID)
	require.NoError(t, err)

	q.clock.Advance(10 * time.Minute)
	marked, err := q.svc.Queue.SweepNoShows(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Equal(t, lifecycle.StatusInConsult, q.appointment(t, q.appts[0].ID).Status)
}
