package services

import (
	"context"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
)

// ClinicLoad is the queue load of one of today's sessions.
type ClinicLoad struct {
	ClinicID        string               `json:"clinic_id"`
	ClinicName      string               `json:"clinic_name"`
	Specialty       string               `json:"specialty"`
	TimePeriod      lifecycle.TimePeriod `json:"time_period"`
	CurrentPatients int                  `json:"current_patients"`
	WaitingCount    int                  `json:"waiting_count"`
}

// DashboardStats summarizes today's activity for admins.
type DashboardStats struct {
	TotalAppointmentsToday int          `json:"total_appointments_today"`
	CheckedInCount         int          `json:"checked_in_count"`
	WaitingCount           int          `json:"waiting_count"`
	CompletedCount         int          `json:"completed_count"`
	ClinicLoad             []ClinicLoad `json:"clinic_load"`
}

// DashboardService computes the admin dashboard.
type DashboardService struct {
	deps *Deps
}

// Stats counts today's appointments by stage and reports each session's queue.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	today := s.deps.today()
	appts, err := s.deps.Store.Appointments().List(ctx, repository.AppointmentFilter{Date: today})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{ClinicLoad: []ClinicLoad{}}
	for _, a := range appts {
		switch a.Status {
		case lifecycle.StatusCancelled:
			continue
		case lifecycle.StatusCheckedIn, lifecycle.StatusWaiting:
			stats.CheckedInCount++
			stats.WaitingCount++
		case lifecycle.StatusCalled, lifecycle.StatusInConsult:
			stats.CheckedInCount++
		case lifecycle.StatusCompleted:
			stats.CheckedInCount++
			stats.CompletedCount++
		}
		stats.TotalAppointmentsToday++
	}

	schedules, err := s.deps.Store.Schedules().List(ctx, repository.ScheduleFilter{Date: today})
	if err != nil {
		return nil, err
	}
	doctors, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, sc := range schedules {
			yield(sc.DoctorID)
		}
	})
	if err != nil {
		return nil, err
	}
	for _, sc := range schedules {
		load := ClinicLoad{ClinicID: sc.ID, TimePeriod: sc.TimePeriod}
		if d := doctors[sc.DoctorID]; d != nil {
			load.ClinicName = d.Name + " clinic"
			load.Specialty = d.Specialty
		}
		checkins, err := s.deps.Store.Checkins().List(ctx, repository.CheckinFilter{ScheduleID: sc.ID})
		if err != nil {
			return nil, err
		}
		current := 0
		if room, err := s.deps.Store.RoomDays().Get(ctx, sc.ID); err == nil {
			current = room.CurrentCalledSequence
		}
		for _, c := range checkins {
			if c.Status == models.CheckinNoShow {
				continue
			}
			load.CurrentPatients++
			if c.Status == models.CheckinWaiting && c.TicketSequence > current {
				load.WaitingCount++
			}
		}
		stats.ClinicLoad = append(stats.ClinicLoad, load)
	}
	return stats, nil
}
