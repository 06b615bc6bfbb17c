package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository"
)

// LeaveInput asks for one session off.
type LeaveInput struct {
	Date       string
	TimePeriod lifecycle.TimePeriod
	Reason     string
}

// LeaveRangeInput asks for every listed session between two dates off.
type LeaveRangeInput struct {
	StartDate   string
	EndDate     string
	TimePeriods []lifecycle.TimePeriod
	Reason      string
}

// LeaveRangeResult reports which sessions a range request covered.
type LeaveRangeResult struct {
	Message   string                `json:"message"`
	Requested []models.LeaveRequest `json:"requested"`
}

// LeaveService handles doctors' leave requests and their review.
type LeaveService struct {
	deps *Deps
}

// Request files a leave request for one of the doctor's sessions.
func (s *LeaveService) Request(ctx context.Context, doctorID string, in LeaveInput) (*models.LeaveRequest, error) {
	if err := validDate(in.Date); err != nil {
		return nil, err
	}
	var lr *models.LeaveRequest
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		sc, err := tx.Schedules().FindSlot(ctx, doctorID, in.Date, in.TimePeriod, true)
		if err != nil {
			return missing(err, "Schedule not found")
		}
		if sc.BookedPatients > 0 {
			return conflict("Schedule on %s (%s) has %d booked patients", sc.Date, sc.TimePeriod, sc.BookedPatients)
		}
		if lr, err = s.file(ctx, tx, doctorID, sc, in.Reason); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "leave_requested", "schedule", sc.ID, map[string]interface{}{
			"reason": in.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// RequestRange files leave for every existing session in the range. Dates
// without a schedule are skipped; a booked session rejects the whole request.
func (s *LeaveService) RequestRange(ctx context.Context, doctorID string, in LeaveRangeInput) (*LeaveRangeResult, error) {
	start, err := time.Parse(models.DateLayout, in.StartDate)
	if err != nil {
		return nil, invalid("Invalid date format, expected YYYY-MM-DD")
	}
	end, err := time.Parse(models.DateLayout, in.EndDate)
	if err != nil {
		return nil, invalid("Invalid date format, expected YYYY-MM-DD")
	}
	if start.After(end) {
		return nil, invalid("Start date cannot be after end date")
	}
	periods := in.TimePeriods
	if len(periods) == 0 {
		periods = lifecycle.TimePeriods
	}

	res := &LeaveRangeResult{Requested: []models.LeaveRequest{}}
	err = s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		rows, err := tx.Schedules().List(ctx, repository.ScheduleFilter{
			DoctorIDs: []string{doctorID},
			DateFrom:  in.StartDate,
			DateTo:    in.EndDate,
		})
		if err != nil {
			return err
		}
		var slots []models.Schedule
		for _, sc := range rows {
			if !containsPeriod(periods, sc.TimePeriod) {
				continue
			}
			if sc.BookedPatients > 0 {
				return conflict("Schedule on %s (%s) has %d booked patients", sc.Date, sc.TimePeriod, sc.BookedPatients)
			}
			slots = append(slots, sc)
		}
		for i := range slots {
			lr, err := s.file(ctx, tx, doctorID, &slots[i], in.Reason)
			if err != nil {
				return err
			}
			res.Requested = append(res.Requested, *lr)
		}
		return s.deps.audit(ctx, tx, doctorID, "leave_range_requested", "doctor", doctorID, map[string]interface{}{
			"start_date": in.StartDate,
			"end_date":   in.EndDate,
			"sessions":   len(res.Requested),
		})
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("Leave requested for %d sessions, waiting for review.", len(res.Requested))
	return res, nil
}

// file creates or refreshes the leave request of sc and marks it pending.
func (s *LeaveService) file(ctx context.Context, tx repository.Store, doctorID string, sc *models.Schedule, reason string) (*models.LeaveRequest, error) {
	next, err := lifecycle.ScheduleTransition(sc.Status, lifecycle.EventRequestLeave)
	if err != nil {
		return nil, invalid("Cannot request leave for a schedule that is %s", sc.Status)
	}

	lr, err := tx.LeaveRequests().GetBySchedule(ctx, sc.ID)
	if errors.Is(err, repository.ErrNotFound) {
		lr = &models.LeaveRequest{ScheduleID: sc.ID, DoctorID: doctorID}
	} else if err != nil {
		return nil, err
	}
	lr.Reason = reason
	lr.Status = models.LeavePending
	lr.ReviewedBy, lr.ReviewedAt = nil, nil
	if sc.MaxPatients > 0 {
		lr.PreviousMaxPatients = sc.MaxPatients
	}
	if err := tx.LeaveRequests().Save(ctx, lr); err != nil {
		return nil, err
	}

	sc.Status = next
	if err := tx.Schedules().Update(ctx, sc); err != nil {
		return nil, err
	}
	return lr, nil
}

// ListPending returns leave requests awaiting review with their session and doctor.
func (s *LeaveService) ListPending(ctx context.Context) ([]models.LeaveRequestView, error) {
	rows, err := s.deps.Store.LeaveRequests().List(ctx, models.LeavePending)
	if err != nil {
		return nil, err
	}
	doctors, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, lr := range rows {
			yield(lr.DoctorID)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaveRequestView, 0, len(rows))
	for _, lr := range rows {
		v := models.LeaveRequestView{LeaveRequest: lr}
		if sc, err := s.deps.Store.Schedules().Get(ctx, lr.ScheduleID); err == nil {
			v.Date = sc.Date
			v.TimePeriod = string(sc.TimePeriod)
		}
		if d := doctors[lr.DoctorID]; d != nil {
			v.DoctorName = d.Name
			v.Specialty = d.Specialty
		}
		out = append(out, v)
	}
	return out, nil
}

// Approve grants the leave: the session is closed to bookings.
func (s *LeaveService) Approve(ctx context.Context, adminID, scheduleID string) (*models.LeaveRequest, error) {
	return s.review(ctx, adminID, scheduleID, lifecycle.EventApproveLeave)
}

// Reject refuses the leave and reopens the session with its previous capacity.
func (s *LeaveService) Reject(ctx context.Context, adminID, scheduleID string) (*models.LeaveRequest, error) {
	return s.review(ctx, adminID, scheduleID, lifecycle.EventRejectLeave)
}

func (s *LeaveService) review(ctx context.Context, adminID, scheduleID string, event lifecycle.ScheduleEvent) (*models.LeaveRequest, error) {
	var (
		lr *models.LeaveRequest
		e  notify.Event
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		lr, err = tx.LeaveRequests().GetBySchedule(ctx, scheduleID)
		if err != nil {
			return missing(err, "Leave request not found")
		}
		sc, err := tx.Schedules().GetForUpdate(ctx, scheduleID)
		if err != nil {
			return missing(err, "Schedule not found")
		}
		next, err := lifecycle.ScheduleTransition(sc.Status, event)
		if err != nil {
			return invalid("Schedule is not waiting for a leave decision (%s)", sc.Status)
		}

		decision := "approved"
		if event == lifecycle.EventApproveLeave {
			if sc.BookedPatients > 0 {
				return conflict("Schedule has %d booked patients", sc.BookedPatients)
			}
			lr.Status = models.LeaveApproved
			sc.MaxPatients = 0
		} else {
			decision = "rejected"
			lr.Status = models.LeaveRejected
			sc.MaxPatients = lr.PreviousMaxPatients
			if sc.MaxPatients <= 0 {
				sc.MaxPatients = s.deps.Clinic.DefaultMaxPatients
			}
		}
		sc.Status = next
		now := s.deps.now()
		lr.ReviewedBy = &adminID
		lr.ReviewedAt = &now
		if err := tx.LeaveRequests().Save(ctx, lr); err != nil {
			return err
		}
		if err := tx.Schedules().Update(ctx, sc); err != nil {
			return err
		}

		e, err = s.deps.message(ctx, tx, models.NotifyLeaveDecision, lr.DoctorID, "",
			"Leave request "+decision,
			fmt.Sprintf("Your leave request for %s (%s) was %s.", sc.Date, sc.TimePeriod, decision))
		if err != nil {
			return err
		}
		e.ScheduleID = scheduleID
		return s.deps.audit(ctx, tx, adminID, "leave_"+decision, "schedule", scheduleID, map[string]interface{}{
			"doctor_id": lr.DoctorID,
		})
	})
	if err != nil {
		return nil, err
	}
	s.deps.publish(ctx, e)
	return lr, nil
}

func containsPeriod(list []lifecycle.TimePeriod, p lifecycle.TimePeriod) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
