package services

import (
	"context"
	"testing"

	"hospital-booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	q := newQueueFixture(t, 4)
	ctx := context.Background()
	_, err := q.svc.Queue.OpenClinic(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := q.svc.Queue.CheckIn(ctx, q.patients[i].ID, q.appts[i].ID, models.CheckinOnline)
		require.NoError(t, err)
	}
	_, err = q.svc.Queue.CallNext(ctx, q.doctor.ID, q.schedule.ID)
	require.NoError(t, err)
	_, err = q.svc.Queue.Complete(ctx, q.doctor.ID, q.schedule.ID, q.appts[0].ID)
	require.NoError(t, err)
	_, err = q.svc.Booking.Cancel(ctx, q.patients[3].ID, q.appts[3].ID)
	require.NoError(t, err)

	stats, err := q.svc.Dashboard.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalAppointmentsToday)
	assert.Equal(t, 3, stats.CheckedInCount)
	assert.Equal(t, 2, stats.WaitingCount)
	assert.Equal(t, 1, stats.CompletedCount)

	require.Len(t, stats.ClinicLoad, 1)
	load := stats.ClinicLoad[0]
	assert.Equal(t, "house clinic", load.ClinicName)
	assert.Equal(t, "cardiology", load.Specialty)
	assert.Equal(t, 3, load.CurrentPatients)
	assert.Equal(t, 2, load.WaitingCount)
}
