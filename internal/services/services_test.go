package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToday = "2026-03-02"

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofKind(k notify.Kind) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc    *Services
	store  *memory.Store
	clock  *fixedClock
	events *recorder
	clinic config.ClinicConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clinic := config.DefaultClinicConfig()
	start, err := time.ParseInLocation("2006-01-02 15:04", testToday+" 09:00", clinic.Location)
	require.NoError(t, err)

	f := &fixture{
		store:  memory.New(),
		clock:  &fixedClock{t: start},
		events: &recorder{},
		clinic: clinic,
	}
	f.svc = New(Deps{
		Store:    f.store,
		Clinic:   clinic,
		Clock:    f.clock,
		Notifier: f.events,
		Log:      zap.NewNop(),
	}, &config.Config{
		JWTSecret:                 "test-secret",
		JWTRefreshSecret:          "test-refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
	})
	return f
}

func (f *fixture) user(t *testing.T, role models.Role, name string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Role: role, IsActive: true}
	switch role {
	case models.RolePatient:
		u.Email = models.StrPtr(name + "@example.com")
	default:
		u.LoginID = models.StrPtr(name)
	}
	if role == models.RoleDoctor {
		u.Specialty = "cardiology"
	}
	require.NoError(t, u.SetPassword("secret1"))
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *fixture) schedule(t *testing.T, doctor *models.User, date string, max int) *models.Schedule {
	t.Helper()
	sc := &models.Schedule{
		DoctorID:    doctor.ID,
		Date:        date,
		TimePeriod:  lifecycle.Morning,
		Status:      lifecycle.ScheduleAvailable,
		MaxPatients: max,
	}
	require.NoError(t, f.store.Schedules().Create(context.Background(), sc))
	return sc
}

func (f *fixture) book(t *testing.T, patient *models.User, sc *models.Schedule) *models.AppointmentView {
	t.Helper()
	v, err := f.svc.Booking.Book(context.Background(), patient.ID, BookingInput{
		DoctorID:   sc.DoctorID,
		Date:       sc.Date,
		TimePeriod: sc.TimePeriod,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) appointment(t *testing.T, id string) *models.Appointment {
	t.Helper()
	a, err := f.store.Appointments().Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func (f *fixture) checkin(t *testing.T, appointmentID string) *models.Checkin {
	t.Helper()
	c, err := f.store.Checkins().GetByAppointment(context.Background(), appointmentID)
	require.NoError(t, err)
	return c
}
