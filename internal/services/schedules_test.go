package services

import (
	"context"
	"testing"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, "root")
	doc := f.user(t, models.RoleDoctor, "house")

	v, err := f.svc.Schedules.Create(ctx, admin.ID, ScheduleInput{
		DoctorID:   doc.ID,
		Date:       "2026-03-05",
		TimePeriod: lifecycle.Afternoon,
	})
	require.NoError(t, err)
	assert.Equal(t, "house", v.DoctorName)
	assert.Equal(t, "cardiology", v.Specialty)
	assert.Equal(t, f.clinic.DefaultMaxPatients, v.MaxPatients)
	assert.Equal(t, lifecycle.ScheduleAvailable, v.Status)

	_, err = f.svc.Schedules.Create(ctx, admin.ID, ScheduleInput{
		DoctorID:   doc.ID,
		Date:       "2026-03-05",
		TimePeriod: lifecycle.Afternoon,
	})
	assert.ErrorIs(t, err, ErrConflict)

	patient := f.user(t, models.RolePatient, "alice")
	_, err = f.svc.Schedules.Create(ctx, admin.ID, ScheduleInput{
		DoctorID:   patient.ID,
		Date:       "2026-03-05",
		TimePeriod: lifecycle.Morning,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, "root")
	doc := f.user(t, models.RoleDoctor, "house")
	booked := f.schedule(t, doc, testToday, 2)
	empty := f.schedule(t, doc, "2026-03-03", 2)
	f.book(t, f.user(t, models.RolePatient, "alice"), booked)

	zero := 0
	_, err := f.svc.Schedules.Update(ctx, admin.ID, booked.ID, ScheduleUpdate{MaxPatients: &zero})
	assert.ErrorIs(t, err, ErrInvalid)

	four := 4
	v, err := f.svc.Schedules.Update(ctx, admin.ID, booked.ID, ScheduleUpdate{MaxPatients: &four})
	require.NoError(t, err)
	assert.Equal(t, 3, v.AvailableSlots)

	assert.ErrorIs(t, f.svc.Schedules.Delete(ctx, admin.ID, booked.ID), ErrConflict)
	require.NoError(t, f.svc.Schedules.Delete(ctx, admin.ID, empty.ID))

	list, err := f.svc.Schedules.DoctorSchedules(ctx, doc.ID, ScheduleQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, booked.ID, list[0].ID)

	_, err = f.svc.Schedules.Get(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleList_MonthFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.user(t, models.RoleDoctor, "house")
	f.schedule(t, doc, "2026-02-27", 5)
	f.schedule(t, doc, testToday, 5)
	f.schedule(t, doc, "2026-03-31", 5)
	f.schedule(t, doc, "2026-04-01", 5)

	march, err := f.svc.Schedules.List(ctx, ScheduleQuery{Month: 3})
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, testToday, march[0].Date)
	assert.Equal(t, "2026-03-31", march[1].Date)

	_, err = f.svc.Schedules.List(ctx, ScheduleQuery{Month: 13})
	assert.ErrorIs(t, err, ErrInvalid)

	byDate, err := f.svc.Schedules.List(ctx, ScheduleQuery{Date: "2026-04-01"})
	require.NoError(t, err)
	assert.Len(t, byDate, 1)
}

func TestRecurringSchedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, models.RoleAdmin, "root")
	doc := f.user(t, models.RoleDoctor, "house")
	existing := f.schedule(t, doc, "2026-03-09", 5)

	res, err := f.svc.Schedules.CreateRecurring(ctx, admin.ID, RecurringInput{
		DoctorID:       doc.ID,
		DayOfWeek:      0,
		TimePeriod:     lifecycle.Morning,
		StartDate:      testToday,
		MonthsToCreate: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-03-09"}, res.SkippedDates)
	var dates []string
	for _, v := range res.Created {
		dates = append(dates, v.Date)
	}
	assert.Equal(t, []string{"2026-03-02", "2026-03-16", "2026-03-23", "2026-03-30"}, dates)

	_, err = f.svc.Schedules.CreateRecurring(ctx, admin.ID, RecurringInput{DoctorID: doc.ID, DayOfWeek: 7, StartDate: testToday, MonthsToCreate: 1})
	assert.ErrorIs(t, err, ErrInvalid)

	created, err := f.store.Schedules().Get(ctx, res.Created[1].ID)
	require.NoError(t, err)
	f.book(t, f.user(t, models.RolePatient, "alice"), created)
	_, err = f.svc.Schedules.DeleteRecurring(ctx, admin.ID, res.RecurringGroupID, "")
	assert.ErrorIs(t, err, ErrConflict)

	n, err := f.svc.Schedules.DeleteRecurring(ctx, admin.ID, res.RecurringGroupID, "2026-03-20")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.store.Schedules().Get(ctx, existing.ID)
	assert.NoError(t, err, "schedules outside the group are kept")

	_, err = f.svc.Schedules.DeleteRecurring(ctx, admin.ID, "no-such-group", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
