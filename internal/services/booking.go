package services

import (
	"context"
	"errors"
	"fmt"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/notify"
	"hospital-booking-server/internal/repository"

	"go.uber.org/zap"
)

// BookingInput asks for a seat in a doctor's session.
type BookingInput struct {
	DoctorID   string
	Date       string
	TimePeriod lifecycle.TimePeriod
}

// BookingService books, lists and cancels appointments.
type BookingService struct {
	deps *Deps
}

// Book reserves a seat for patientID. A full session puts the patient on the
// waitlist without consuming capacity.
func (s *BookingService) Book(ctx context.Context, patientID string, in BookingInput) (*models.AppointmentView, error) {
	if err := validDate(in.Date); err != nil {
		return nil, err
	}
	if in.Date < s.deps.today() {
		return nil, invalid("Cannot book an appointment in the past")
	}

	var (
		appt   *models.Appointment
		doctor *models.User
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		sc, err := tx.Schedules().FindSlot(ctx, in.DoctorID, in.Date, in.TimePeriod, true)
		if err != nil {
			return missing(err, "No schedule found for this doctor, date and time period")
		}
		if !lifecycle.Bookable(sc.Status) {
			return conflict("This session is not open for booking (%s)", sc.Status)
		}
		existing, err := tx.Appointments().List(ctx, repository.AppointmentFilter{
			PatientID:  patientID,
			ScheduleID: sc.ID,
			Statuses:   lifecycle.ActiveStatuses(),
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return conflict("You already have an appointment for this session")
		}

		appt = &models.Appointment{
			PatientID:  patientID,
			DoctorID:   sc.DoctorID,
			ScheduleID: sc.ID,
			Date:       sc.Date,
			TimePeriod: sc.TimePeriod,
			Status:     lifecycle.StatusWaitlist,
		}
		if sc.HasCapacity() {
			appt.Status = lifecycle.StatusScheduled
			sc.BookedPatients++
			if err := tx.Schedules().Update(ctx, sc); err != nil {
				return err
			}
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			return err
		}
		if doctor, err = tx.Users().Get(ctx, sc.DoctorID); err != nil {
			return missing(err, "Doctor not found")
		}
		return s.deps.audit(ctx, tx, patientID, "appointment_booked", "appointment", appt.ID, map[string]interface{}{
			"schedule_id": sc.ID,
			"status":      appt.Status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordBooking(string(appt.Status))
	s.deps.Log.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("schedule_id", appt.ScheduleID),
		zap.String("status", string(appt.Status)))
	v := models.NewAppointmentView(*appt, models.RolePatient, doctor, nil)
	return &v, nil
}

// ListForPatient returns the patient's appointments with their allowed actions.
func (s *BookingService) ListForPatient(ctx context.Context, patientID string) ([]models.AppointmentView, error) {
	rows, err := s.deps.Store.Appointments().List(ctx, repository.AppointmentFilter{PatientID: patientID})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, rows, models.RolePatient)
}

// ListForDoctor returns a doctor's appointments, optionally on one date.
func (s *BookingService) ListForDoctor(ctx context.Context, doctorID, date string) ([]models.AppointmentView, error) {
	if date != "" {
		if err := validDate(date); err != nil {
			return nil, err
		}
	}
	rows, err := s.deps.Store.Appointments().List(ctx, repository.AppointmentFilter{DoctorID: doctorID, Date: date})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, rows, models.RoleDoctor)
}

// Cancel cancels the patient's own appointment.
func (s *BookingService) Cancel(ctx context.Context, patientID, appointmentID string) (*models.AppointmentView, error) {
	var (
		appt   *models.Appointment
		events []notify.Event
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return missing(err, "Appointment not found")
		}
		if appt.PatientID != patientID {
			return notFound("Appointment not found")
		}
		if !lifecycle.CanPerform(lifecycle.ActorPatient, appt.Status, lifecycle.ActionCancel) {
			return invalid("Appointment cannot be cancelled while %s", appt.Status)
		}
		if events, err = s.cancel(ctx, tx, appt); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, patientID, "appointment_cancelled", "appointment", appt.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.deps.publish(ctx, events...)
	v := models.NewAppointmentView(*appt, models.RolePatient, nil, nil)
	return &v, nil
}

// cancel frees the seat held by appt and promotes the oldest waitlisted
// appointment of the same schedule into it.
func (s *BookingService) cancel(ctx context.Context, tx repository.Store, appt *models.Appointment) ([]notify.Event, error) {
	heldSeat := lifecycle.HoldsSeat(appt.Status)
	if err := appt.Apply(lifecycle.ActionCancel); err != nil {
		return nil, invalid("%s", err.Error())
	}
	if err := tx.Appointments().Update(ctx, appt); err != nil {
		return nil, err
	}
	if !heldSeat {
		return nil, nil
	}

	sc, err := tx.Schedules().GetForUpdate(ctx, appt.ScheduleID)
	if err != nil {
		return nil, missing(err, "Schedule not found")
	}
	if sc.BookedPatients > 0 {
		sc.BookedPatients--
	}

	var events []notify.Event
	waitlist, err := tx.Appointments().List(ctx, repository.AppointmentFilter{
		ScheduleID: sc.ID,
		Statuses:   []lifecycle.AppointmentStatus{lifecycle.StatusWaitlist},
	})
	if err != nil {
		return nil, err
	}
	if len(waitlist) > 0 && sc.HasCapacity() {
		next := waitlist[0]
		if err := next.Apply(lifecycle.ActionPromote); err != nil {
			return nil, err
		}
		if err := tx.Appointments().Update(ctx, &next); err != nil {
			return nil, err
		}
		sc.BookedPatients++
		e, err := s.deps.message(ctx, tx, models.NotifyWaitlistPromoted, next.PatientID, next.ID,
			"Appointment confirmed from waitlist",
			fmt.Sprintf("A seat opened up on %s (%s). Your appointment is now scheduled.", next.Date, next.TimePeriod))
		if err != nil {
			return nil, err
		}
		e.ScheduleID = sc.ID
		events = append(events, e)
		if err := s.deps.audit(ctx, tx, models.SystemActor, "waitlist_promoted", "appointment", next.ID, map[string]interface{}{
			"schedule_id": sc.ID,
		}); err != nil {
			return nil, err
		}
	}
	return events, tx.Schedules().Update(ctx, sc)
}

// ApplyAction performs a lifecycle action on behalf of an admin.
func (s *BookingService) ApplyAction(ctx context.Context, actorID string, role models.Role, appointmentID string, action lifecycle.Action) (*models.AppointmentView, error) {
	var (
		appt   *models.Appointment
		events []notify.Event
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return missing(err, "Appointment not found")
		}
		if !lifecycle.CanPerform(role.Actor(), appt.Status, action) {
			return invalid("Cannot %s an appointment that is %s", action, appt.Status)
		}
		from := appt.Status

		switch action {
		case lifecycle.ActionCancel:
			if events, err = s.cancel(ctx, tx, appt); err != nil {
				return err
			}
			e, err := s.deps.message(ctx, tx, models.NotifyAppointmentCancelled, appt.PatientID, appt.ID,
				"Appointment cancelled",
				fmt.Sprintf("Your appointment on %s (%s) was cancelled by the clinic.", appt.Date, appt.TimePeriod))
			if err != nil {
				return err
			}
			events = append(events, e)
		case lifecycle.ActionPromote:
			sc, err := tx.Schedules().GetForUpdate(ctx, appt.ScheduleID)
			if err != nil {
				return missing(err, "Schedule not found")
			}
			if !sc.HasCapacity() {
				return conflict("Schedule is full")
			}
			sc.BookedPatients++
			if err := tx.Schedules().Update(ctx, sc); err != nil {
				return err
			}
			if err := s.update(ctx, tx, appt, action); err != nil {
				return err
			}
		case lifecycle.ActionMarkNoShow:
			c, err := tx.Checkins().GetByAppointment(ctx, appt.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := markNoShow(ctx, s.deps, tx, appt, c, "Marked as no-show by admin"); err != nil {
				return err
			}
		case lifecycle.ActionReCheckIn:
			c, err := tx.Checkins().GetByAppointment(ctx, appt.ID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				// Marked no-show before it was ever checked in.
				if _, err := issueTicket(ctx, s.deps, tx, appt, action); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if _, err := reCheckIn(ctx, tx, c); err != nil {
					return err
				}
				appt.Status = lifecycle.StatusCheckedIn
			}
		default:
			if err := s.update(ctx, tx, appt, action); err != nil {
				return err
			}
		}
		return s.deps.audit(ctx, tx, actorID, "appointment_"+string(action), "appointment", appt.ID, map[string]interface{}{
			"from": from,
			"to":   appt.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	if action == lifecycle.ActionMarkNoShow {
		s.deps.Metrics.RecordNoShow("admin")
	}
	s.deps.Cache.Invalidate(ctx, appt.ScheduleID)
	s.deps.publish(ctx, events...)
	v := models.NewAppointmentView(*appt, role, nil, nil)
	return &v, nil
}

func (s *BookingService) update(ctx context.Context, tx repository.Store, appt *models.Appointment, action lifecycle.Action) error {
	if err := appt.Apply(action); err != nil {
		return invalid("%s", err.Error())
	}
	return tx.Appointments().Update(ctx, appt)
}

func (s *BookingService) views(ctx context.Context, rows []models.Appointment, role models.Role) ([]models.AppointmentView, error) {
	users, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, a := range rows {
			yield(a.DoctorID)
			yield(a.PatientID)
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.AppointmentView, 0, len(rows))
	for _, a := range rows {
		v := models.NewAppointmentView(a, role, users[a.DoctorID], users[a.PatientID])
		if c, err := s.deps.Store.Checkins().GetByAppointment(ctx, a.ID); err == nil {
			v.TicketNumber = c.TicketNumber
		}
		out = append(out, v)
	}
	return out, nil
}
