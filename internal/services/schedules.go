package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"

	"github.com/google/uuid"
)

// ScheduleQuery filters schedule listings. A month without a year means the
// current year; a year without a month means the whole year.
type ScheduleQuery struct {
	DoctorIDs  []string
	Date       string
	Month      int
	Year       int
	TimePeriod lifecycle.TimePeriod
	Specialty  string
	Statuses   []lifecycle.ScheduleStatus
	Skip       int
	Limit      int
}

// ScheduleInput creates one schedule.
type ScheduleInput struct {
	DoctorID    string
	Date        string
	TimePeriod  lifecycle.TimePeriod
	MaxPatients int
}

// ScheduleUpdate changes the non-nil fields of a schedule.
type ScheduleUpdate struct {
	DoctorID    *string
	Date        *string
	TimePeriod  *lifecycle.TimePeriod
	MaxPatients *int
	Status      *lifecycle.ScheduleStatus
}

// RecurringInput creates one schedule per matching weekday.
// DayOfWeek counts from 0 for Monday.
type RecurringInput struct {
	DoctorID       string
	DayOfWeek      int
	TimePeriod     lifecycle.TimePeriod
	StartDate      string
	MonthsToCreate int
	MaxPatients    int
}

// RecurringResult reports what a recurring create did.
type RecurringResult struct {
	RecurringGroupID string                `json:"recurring_group_id"`
	Created          []models.ScheduleView `json:"created"`
	SkippedDates     []string              `json:"skipped_dates"`
}

// ScheduleService manages doctors' clinic sessions.
type ScheduleService struct {
	deps *Deps
}

func (s *ScheduleService) filter(q ScheduleQuery) (repository.ScheduleFilter, error) {
	f := repository.ScheduleFilter{
		DoctorIDs:  q.DoctorIDs,
		Date:       q.Date,
		TimePeriod: q.TimePeriod,
		Specialty:  q.Specialty,
		Statuses:   q.Statuses,
		Skip:       q.Skip,
		Limit:      q.Limit,
	}
	if q.Date != "" {
		if err := validDate(q.Date); err != nil {
			return f, err
		}
	}
	if q.Month == 0 && q.Year == 0 {
		return f, nil
	}
	if q.Month < 0 || q.Month > 12 {
		return f, invalid("Month must be between 1 and 12")
	}
	year := q.Year
	if year == 0 {
		year = s.deps.now().In(s.deps.Clinic.Location).Year()
	}
	if q.Month == 0 {
		f.DateFrom = fmt.Sprintf("%04d-01-01", year)
		f.DateTo = fmt.Sprintf("%04d-12-31", year)
		return f, nil
	}
	first := time.Date(year, time.Month(q.Month), 1, 0, 0, 0, 0, time.UTC)
	f.DateFrom = first.Format(models.DateLayout)
	f.DateTo = first.AddDate(0, 1, -1).Format(models.DateLayout)
	return f, nil
}

// List returns schedules with their doctor's name and specialty.
func (s *ScheduleService) List(ctx context.Context, q ScheduleQuery) ([]models.ScheduleView, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Store.Schedules().List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, rows)
}

// DoctorSchedules lists a doctor's own schedules.
func (s *ScheduleService) DoctorSchedules(ctx context.Context, doctorID string, q ScheduleQuery) ([]models.ScheduleView, error) {
	q.DoctorIDs = []string{doctorID}
	q.Specialty = ""
	return s.List(ctx, q)
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id string) (*models.ScheduleView, error) {
	sc, err := s.deps.Store.Schedules().Get(ctx, id)
	if err != nil {
		return nil, missing(err, "Schedule not found")
	}
	views, err := s.views(ctx, []models.Schedule{*sc})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Create adds a schedule. A second schedule for the same doctor, date and period conflicts.
func (s *ScheduleService) Create(ctx context.Context, actorID string, in ScheduleInput) (*models.ScheduleView, error) {
	if err := validDate(in.Date); err != nil {
		return nil, err
	}
	sc := &models.Schedule{
		DoctorID:    in.DoctorID,
		Date:        in.Date,
		TimePeriod:  in.TimePeriod,
		Status:      lifecycle.ScheduleAvailable,
		MaxPatients: s.maxPatients(in.MaxPatients),
	}
	var doctor *models.User
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		if doctor, err = s.doctor(ctx, tx, in.DoctorID); err != nil {
			return err
		}
		if err := s.create(ctx, tx, sc); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "schedule_created", "schedule", sc.ID, map[string]interface{}{
			"doctor_id":   sc.DoctorID,
			"date":        sc.Date,
			"time_period": sc.TimePeriod,
		})
	})
	if err != nil {
		return nil, err
	}
	v := models.NewScheduleView(*sc, doctor)
	return &v, nil
}

func (s *ScheduleService) create(ctx context.Context, tx repository.Store, sc *models.Schedule) error {
	err := tx.Schedules().Create(ctx, sc)
	if errors.Is(err, repository.ErrDuplicate) {
		return conflict("Schedule already exists for this doctor on %s (%s)", sc.Date, sc.TimePeriod)
	}
	return err
}

// Update changes a schedule. Capacity cannot drop below the seats already booked.
func (s *ScheduleService) Update(ctx context.Context, actorID, id string, in ScheduleUpdate) (*models.ScheduleView, error) {
	var (
		sc     *models.Schedule
		doctor *models.User
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		sc, err = tx.Schedules().GetForUpdate(ctx, id)
		if err != nil {
			return missing(err, "Schedule not found")
		}
		if in.DoctorID != nil {
			sc.DoctorID = *in.DoctorID
		}
		if in.Date != nil {
			if err := validDate(*in.Date); err != nil {
				return err
			}
			sc.Date = *in.Date
		}
		if in.TimePeriod != nil {
			sc.TimePeriod = *in.TimePeriod
		}
		if in.MaxPatients != nil {
			if *in.MaxPatients < sc.BookedPatients {
				return invalid("Max patients cannot be less than booked patients (%d)", sc.BookedPatients)
			}
			sc.MaxPatients = *in.MaxPatients
		}
		if in.Status != nil {
			sc.Status = *in.Status
		}
		if doctor, err = s.doctor(ctx, tx, sc.DoctorID); err != nil {
			return err
		}
		err = tx.Schedules().Update(ctx, sc)
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("Schedule already exists for this doctor on %s (%s)", sc.Date, sc.TimePeriod)
		}
		if err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, actorID, "schedule_updated", "schedule", id, nil)
	})
	if err != nil {
		return nil, err
	}
	v := models.NewScheduleView(*sc, doctor)
	return &v, nil
}

// Delete removes a schedule that has no booked patients.
func (s *ScheduleService) Delete(ctx context.Context, actorID, id string) error {
	return s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		sc, err := tx.Schedules().GetForUpdate(ctx, id)
		if err != nil {
			return missing(err, "Schedule not found")
		}
		if sc.BookedPatients > 0 {
			return conflict("Cannot delete a schedule with %d booked patients", sc.BookedPatients)
		}
		if err := tx.Schedules().Delete(ctx, id); err != nil {
			return missing(err, "Schedule not found")
		}
		return s.deps.audit(ctx, tx, actorID, "schedule_deleted", "schedule", id, map[string]interface{}{
			"doctor_id": sc.DoctorID,
			"date":      sc.Date,
		})
	})
}

// CreateRecurring creates a schedule on every matching weekday from StartDate
// for MonthsToCreate months. Dates that already have a schedule are skipped.
func (s *ScheduleService) CreateRecurring(ctx context.Context, actorID string, in RecurringInput) (*RecurringResult, error) {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return nil, invalid("day_of_week must be between 0 (Monday) and 6 (Sunday)")
	}
	if in.MonthsToCreate < 1 {
		return nil, invalid("months_to_create must be at least 1")
	}
	start, err := time.Parse(models.DateLayout, in.StartDate)
	if err != nil {
		return nil, invalid("Invalid date format, expected YYYY-MM-DD")
	}
	end := start.AddDate(0, in.MonthsToCreate, 0)
	weekday := time.Weekday((in.DayOfWeek + 1) % 7)

	res := &RecurringResult{RecurringGroupID: uuid.NewString(), Created: []models.ScheduleView{}, SkippedDates: []string{}}
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		doctor, err := s.doctor(ctx, tx, in.DoctorID)
		if err != nil {
			return err
		}
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			if d.Weekday() != weekday {
				continue
			}
			sc := &models.Schedule{
				DoctorID:         in.DoctorID,
				RecurringGroupID: &res.RecurringGroupID,
				Date:             d.Format(models.DateLayout),
				TimePeriod:       in.TimePeriod,
				Status:           lifecycle.ScheduleAvailable,
				MaxPatients:      s.maxPatients(in.MaxPatients),
			}
			err := tx.Schedules().Create(ctx, sc)
			if errors.Is(err, repository.ErrDuplicate) {
				res.SkippedDates = append(res.SkippedDates, sc.Date)
				continue
			}
			if err != nil {
				return err
			}
			res.Created = append(res.Created, models.NewScheduleView(*sc, doctor))
		}
		return s.deps.audit(ctx, tx, actorID, "recurring_schedule_created", "schedule_group", res.RecurringGroupID, map[string]interface{}{
			"doctor_id": in.DoctorID,
			"created":   len(res.Created),
			"skipped":   len(res.SkippedDates),
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteRecurring removes the schedules of a recurring group dated on or after
// from (today when empty). Nothing is deleted if any of them has bookings.
func (s *ScheduleService) DeleteRecurring(ctx context.Context, actorID, groupID, from string) (int, error) {
	if from == "" {
		from = s.deps.today()
	} else if err := validDate(from); err != nil {
		return 0, err
	}
	deleted := 0
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		rows, err := tx.Schedules().List(ctx, repository.ScheduleFilter{RecurringGroupID: groupID, DateFrom: from})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return notFound("No schedules found for this recurring group")
		}
		for _, sc := range rows {
			if sc.BookedPatients > 0 {
				return conflict("Schedule on %s has %d booked patients", sc.Date, sc.BookedPatients)
			}
		}
		for _, sc := range rows {
			if err := tx.Schedules().Delete(ctx, sc.ID); err != nil {
				return err
			}
			deleted++
		}
		return s.deps.audit(ctx, tx, actorID, "recurring_schedule_deleted", "schedule_group", groupID, map[string]interface{}{
			"from":    from,
			"deleted": deleted,
		})
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *ScheduleService) doctor(ctx context.Context, tx repository.Store, id string) (*models.User, error) {
	doctor, err := tx.Users().Get(ctx, id)
	if err != nil {
		return nil, missing(err, "Doctor not found")
	}
	if doctor.Role != models.RoleDoctor {
		return nil, notFound("Doctor not found")
	}
	return doctor, nil
}

func (s *ScheduleService) maxPatients(n int) int {
	if n > 0 {
		return n
	}
	return s.deps.Clinic.DefaultMaxPatients
}

func (s *ScheduleService) views(ctx context.Context, rows []models.Schedule) ([]models.ScheduleView, error) {
	doctors, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, sc := range rows {
			yield(sc.DoctorID)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.ScheduleView, 0, len(rows))
	for _, sc := range rows {
		out = append(out, models.NewScheduleView(sc, doctors[sc.DoctorID]))
	}
	return out, nil
}

// usersByID loads the distinct users named by ids.
func usersByID(ctx context.Context, store repository.Store, ids func(yield func(string))) (map[string]*models.User, error) {
	seen := map[string]bool{}
	var list []string
	ids(func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			list = append(list, id)
		}
	})
	out := make(map[string]*models.User, len(list))
	if len(list) == 0 {
		return out, nil
	}
	users, err := store.Users().List(ctx, repository.UserFilter{IDs: list})
	if err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func validDate(s string) error {
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return invalid("Invalid date format, expected YYYY-MM-DD")
	}
	return nil
}
