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

	"go.uber.org/zap"
)

// reminderDistance is how many tickets ahead of a patient the doctor calls
// when the patient gets a queue reminder.
const reminderDistance = 2

// reCheckInSlot is the number of waiting patients a re-checked-in patient is
// placed behind when the queue is long.
const reCheckInSlot = 3

var timeZero time.Time

// CheckinResult is returned after a patient checks in.
type CheckinResult struct {
	AppointmentID  string                      `json:"appointment_id"`
	PatientID      string                      `json:"patient_id"`
	TicketNumber   string                      `json:"ticket_number"`
	TicketSequence int                         `json:"ticket_sequence"`
	Status         lifecycle.AppointmentStatus `json:"status"`
}

// QueueStatus is a patient's view of the clinic queue.
type QueueStatus struct {
	CurrentNumber     string `json:"current_number"`
	MyPosition        string `json:"my_position"`
	WaitingCount      int    `json:"waiting_count"`
	EstimatedWaitTime int    `json:"estimated_wait_time"`
	CheckedIn         bool   `json:"checked_in"`
	StatusMessage     string `json:"status_message"`
}

// ClinicQueueStatus is the doctor's view of a session's queue.
type ClinicQueueStatus struct {
	ScheduleID    string                   `json:"schedule_id"`
	CurrentNumber string                   `json:"current_number"`
	NextSequence  int                      `json:"next_sequence"`
	WaitingCount  int                      `json:"waiting_count"`
	ClinicStatus  lifecycle.ScheduleStatus `json:"clinic_status"`
}

// WaitingPatient is one row of the doctor's waiting list.
type WaitingPatient struct {
	PatientID      string               `json:"patient_id"`
	PatientName    string               `json:"patient_name"`
	TicketNumber   string               `json:"ticket_number"`
	TicketSequence int                  `json:"ticket_sequence"`
	CheckinTime    string               `json:"checkin_time"`
	AppointmentID  string               `json:"appointment_id"`
	CheckinID      string               `json:"checkin_id"`
	Status         models.CheckinStatus `json:"status"`
}

// TicketResult is returned by the doctor's queue actions.
type TicketResult struct {
	Message        string `json:"message"`
	TicketNumber   string `json:"ticket_number,omitempty"`
	TicketSequence int    `json:"ticket_sequence,omitempty"`
}

// QueueService runs check-in and the clinic queue.
type QueueService struct {
	deps *Deps
}

// CheckIn issues a queue ticket for the patient's appointment today.
func (s *QueueService) CheckIn(ctx context.Context, patientID, appointmentID string, method models.CheckinMethod) (*CheckinResult, error) {
	if method != models.CheckinOnline && method != models.CheckinOnsite {
		return nil, invalid("Check-in method must be online or onsite")
	}
	var (
		appt    *models.Appointment
		checkin *models.Checkin
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		patient, err := tx.Users().Get(ctx, patientID)
		if err != nil {
			return missing(err, "Patient not found")
		}
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil {
			return missing(err, "Appointment not found")
		}
		if appt.PatientID != patientID {
			return forbidden("Appointment does not belong to patient")
		}
		if appt.Status == lifecycle.StatusNoShow {
			return invalid("You were marked as a no-show. Please contact the clinic to check in again.")
		}
		today := s.deps.today()
		if method == models.CheckinOnline {
			start, err := s.deps.startOfDay(today)
			if err != nil {
				return err
			}
			if patient.IsSuspended(start) {
				return forbidden(fmt.Sprintf("Online check-in is suspended. Please check in at the clinic kiosk. Suspended until: %s",
					patient.SuspendedUntil.In(s.deps.Clinic.Location).Format(models.DateLayout)))
			}
		}
		if !lifecycle.Can(appt.Status, lifecycle.ActionCheckIn) {
			return invalid("Appointment status is '%s', cannot check in", appt.Status)
		}
		if appt.Date != today {
			return invalid("Check-in is only possible on the day of the appointment")
		}

		room, err := s.roomDay(ctx, tx, appt.ScheduleID)
		if err != nil {
			return err
		}
		seq := room.TakeSequence()
		if err := tx.RoomDays().Update(ctx, room); err != nil {
			return err
		}
		if err := appt.Apply(lifecycle.ActionCheckIn); err != nil {
			return err
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		checkin = &models.Checkin{
			AppointmentID: appt.ID,
			PatientID:     patientID,
			ScheduleID:    appt.ScheduleID,
			CheckinTime:   s.deps.now(),
			Method:        method,
			Status:        models.CheckinWaiting,
		}
		checkin.SetSequence(seq)
		if err := tx.Checkins().Create(ctx, checkin); errors.Is(err, repository.ErrDuplicate) {
			return conflict("Appointment is already checked in")
		} else if err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, patientID, "patient_checked_in", "appointment", appt.ID, map[string]interface{}{
			"method":        method,
			"ticket_number": checkin.TicketNumber,
		})
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordCheckin(string(method))
	s.deps.Log.Info("patient checked in",
		zap.String("appointment_id", appt.ID),
		zap.String("schedule_id", appt.ScheduleID),
		zap.String("ticket_number", checkin.TicketNumber))
	s.changed(ctx, appt.ScheduleID)
	return &CheckinResult{
		AppointmentID:  appt.ID,
		PatientID:      patientID,
		TicketNumber:   checkin.TicketNumber,
		TicketSequence: checkin.TicketSequence,
		Status:         appt.Status,
	}, nil
}

// roomDay returns the locked queue counters of a schedule, creating them on first check-in.
func (s *QueueService) roomDay(ctx context.Context, tx repository.Store, scheduleID string) (*models.RoomDay, error) {
	room, err := tx.RoomDays().GetForUpdate(ctx, scheduleID)
	if !errors.Is(err, repository.ErrNotFound) {
		return room, err
	}
	room = &models.RoomDay{ScheduleID: scheduleID, NextSequence: 1}
	err = tx.RoomDays().Create(ctx, room)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent first check-in created it; wait on its lock.
		return tx.RoomDays().GetForUpdate(ctx, scheduleID)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// QueueStatus reports where the patient stands in the queue of their appointment.
func (s *QueueService) QueueStatus(ctx context.Context, patientID, appointmentID string) (*QueueStatus, error) {
	appt, err := s.deps.Store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		return nil, missing(err, "Appointment not found")
	}
	if appt.PatientID != patientID {
		return nil, forbidden("Appointment does not belong to patient")
	}

	var cached QueueStatus
	if s.deps.Cache.Get(ctx, appt.ScheduleID, appt.ID, &cached) {
		return &cached, nil
	}

	room, err := s.deps.Store.RoomDays().Get(ctx, appt.ScheduleID)
	if err != nil {
		return nil, missing(err, "The clinic is not open yet or has closed")
	}
	status := &QueueStatus{CurrentNumber: models.TicketNumber(room.CurrentCalledSequence)}

	checkin, err := s.deps.Store.Checkins().GetByAppointment(ctx, appt.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status.StatusMessage = "You have not checked in yet. Please check in first."
	case err != nil:
		return nil, err
	default:
		status.CheckedIn = true
		status.MyPosition = checkin.TicketNumber
		if checkin.TicketSequence > room.CurrentCalledSequence {
			status.WaitingCount = checkin.TicketSequence - room.CurrentCalledSequence - 1
			status.EstimatedWaitTime = status.WaitingCount * s.deps.Clinic.MinutesPerPatient
		}
		switch {
		case checkin.Status == models.CheckinNoShow:
			status.WaitingCount, status.EstimatedWaitTime = 0, 0
			status.StatusMessage = "You were marked as a no-show. Please contact the clinic to check in again."
		case checkin.TicketSequence == room.CurrentCalledSequence:
			status.StatusMessage = "It is your turn. Please proceed to the consultation room."
		default:
			status.StatusMessage = "Queue information updated."
		}
	}

	s.deps.Cache.Set(ctx, appt.ScheduleID, appt.ID, status)
	return status, nil
}

// ownSchedule loads a schedule of doctorID dated today.
func (s *QueueService) ownSchedule(ctx context.Context, store repository.Store, doctorID, scheduleID string) (*models.Schedule, error) {
	sc, err := store.Schedules().Get(ctx, scheduleID)
	if err != nil || sc.DoctorID != doctorID {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, notFound("Schedule not found or does not belong to this doctor")
	}
	if sc.Date != s.deps.today() {
		return nil, invalid("Only today's schedule can be managed")
	}
	return sc, nil
}

// OpenClinic starts a session's queue.
func (s *QueueService) OpenClinic(ctx context.Context, doctorID, scheduleID string) (*ClinicQueueStatus, error) {
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		sc, err := s.ownSchedule(ctx, tx, doctorID, scheduleID)
		if err != nil {
			return err
		}
		next, err := lifecycle.ScheduleTransition(sc.Status, lifecycle.EventOpenClinic)
		if err != nil {
			return invalid("Cannot open the clinic while the schedule is %s", sc.Status)
		}
		wasOpen := sc.Status == lifecycle.ScheduleOpen

		room, err := s.roomDay(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if !wasOpen {
			room.CurrentCalledSequence = 0
		}
		if room.NextSequence < 1 {
			room.NextSequence = 1
		}
		if err := tx.RoomDays().Update(ctx, room); err != nil {
			return err
		}
		sc.Status = next
		if err := tx.Schedules().Update(ctx, sc); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "clinic_opened", "schedule", scheduleID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, scheduleID)
	return s.DoctorQueueStatus(ctx, doctorID, scheduleID)
}

// CloseClinic ends a session and discards its queue counters.
func (s *QueueService) CloseClinic(ctx context.Context, doctorID, scheduleID string) error {
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		sc, err := s.ownSchedule(ctx, tx, doctorID, scheduleID)
		if err != nil {
			return err
		}
		next, err := lifecycle.ScheduleTransition(sc.Status, lifecycle.EventCloseClinic)
		if err != nil {
			return invalid("Cannot close the clinic while the schedule is %s", sc.Status)
		}
		if err := tx.RoomDays().Delete(ctx, scheduleID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		sc.Status = next
		if err := tx.Schedules().Update(ctx, sc); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "clinic_closed", "schedule", scheduleID, nil)
	})
	if err != nil {
		return err
	}
	s.deps.Cache.Invalidate(ctx, scheduleID)
	s.deps.Metrics.ForgetQueue(scheduleID)
	s.deps.publish(ctx, notify.Event{
		Kind:          notify.KindBoardUpdate,
		ScheduleID:    scheduleID,
		CurrentNumber: "N/A",
		Message:       "Clinic closed",
	})
	return nil
}

// DoctorQueueStatus summarizes a session's queue for its doctor.
func (s *QueueService) DoctorQueueStatus(ctx context.Context, doctorID, scheduleID string) (*ClinicQueueStatus, error) {
	sc, err := s.ownSchedule(ctx, s.deps.Store, doctorID, scheduleID)
	if err != nil {
		return nil, err
	}
	room, err := s.deps.Store.RoomDays().Get(ctx, scheduleID)
	if errors.Is(err, repository.ErrNotFound) {
		return &ClinicQueueStatus{
			ScheduleID:    scheduleID,
			CurrentNumber: "N/A",
			ClinicStatus:  lifecycle.ScheduleClosed,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	waiting, err := s.waiting(ctx, s.deps.Store, room)
	if err != nil {
		return nil, err
	}
	return &ClinicQueueStatus{
		ScheduleID:    scheduleID,
		CurrentNumber: models.TicketNumber(room.CurrentCalledSequence),
		NextSequence:  room.NextSequence,
		WaitingCount:  len(waiting),
		ClinicStatus:  sc.Status,
	}, nil
}

// waiting lists checked-in tickets not yet called, in queue order.
func (s *QueueService) waiting(ctx context.Context, store repository.Store, room *models.RoomDay) ([]models.Checkin, error) {
	return store.Checkins().List(ctx, repository.CheckinFilter{
		ScheduleID:    room.ScheduleID,
		Statuses:      []models.CheckinStatus{models.CheckinWaiting},
		AfterSequence: room.CurrentCalledSequence,
	})
}

// WaitingPatients lists the session's checked-in and seen patients by ticket.
func (s *QueueService) WaitingPatients(ctx context.Context, doctorID, scheduleID string) ([]WaitingPatient, error) {
	if _, err := s.ownSchedule(ctx, s.deps.Store, doctorID, scheduleID); err != nil {
		return nil, err
	}
	out := []WaitingPatient{}
	if _, err := s.deps.Store.RoomDays().Get(ctx, scheduleID); errors.Is(err, repository.ErrNotFound) {
		return out, nil
	} else if err != nil {
		return nil, err
	}

	rows, err := s.deps.Store.Checkins().List(ctx, repository.CheckinFilter{
		ScheduleID: scheduleID,
		Statuses:   []models.CheckinStatus{models.CheckinWaiting, models.CheckinSeen},
	})
	if err != nil {
		return nil, err
	}
	patients, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, c := range rows {
			yield(c.PatientID)
		}
	})
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		w := WaitingPatient{
			PatientID:      c.PatientID,
			TicketNumber:   c.TicketNumber,
			TicketSequence: c.TicketSequence,
			CheckinTime:    c.CheckinTime.In(s.deps.Clinic.Location).Format("15:04:05"),
			AppointmentID:  c.AppointmentID,
			CheckinID:      c.ID,
			Status:         c.Status,
		}
		if p := patients[c.PatientID]; p != nil {
			w.PatientName = p.Name
		}
		out = append(out, w)
	}
	return out, nil
}

// CallNext advances the queue by one ticket. The patient holding it is
// called in, and the patient two tickets behind gets a reminder.
func (s *QueueService) CallNext(ctx context.Context, doctorID, scheduleID string) (*TicketResult, error) {
	var (
		room   *models.RoomDay
		events []notify.Event
	)
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.ownSchedule(ctx, tx, doctorID, scheduleID); err != nil {
			return err
		}
		var err error
		room, err = tx.RoomDays().GetForUpdate(ctx, scheduleID)
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("The clinic is not open, cannot call patients")
		}
		if err != nil {
			return err
		}
		room.CurrentCalledSequence++
		if err := tx.RoomDays().Update(ctx, room); err != nil {
			return err
		}

		called, err := tx.Checkins().FindBySequence(ctx, scheduleID, room.CurrentCalledSequence)
		if err == nil && called.Status == models.CheckinWaiting {
			if err := s.callIn(ctx, tx, called); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		target, err := tx.Checkins().FindBySequence(ctx, scheduleID, room.CurrentCalledSequence+reminderDistance)
		if err == nil && target.Status == models.CheckinWaiting {
			e, err := s.deps.message(ctx, tx, models.NotifyQueueReminder, target.PatientID, target.AppointmentID,
				"Queue reminder",
				fmt.Sprintf("Your turn is approaching. Please prepare to proceed to the consultation room. Your ticket number is %s.", target.TicketNumber))
			if err != nil {
				return err
			}
			e.ScheduleID = scheduleID
			events = append(events, e)
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "patient_called", "schedule", scheduleID, map[string]interface{}{
			"ticket_number": models.TicketNumber(room.CurrentCalledSequence),
		})
	})
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.RecordCall()
	s.deps.publish(ctx, events...)
	s.changed(ctx, scheduleID)
	number := models.TicketNumber(room.CurrentCalledSequence)
	return &TicketResult{
		Message:        fmt.Sprintf("Called ticket %s.", number),
		TicketNumber:   number,
		TicketSequence: room.CurrentCalledSequence,
	}, nil
}

// callIn marks a ticket as seen, its appointment as called and records the call.
func (s *QueueService) callIn(ctx context.Context, tx repository.Store, c *models.Checkin) error {
	c.Status = models.CheckinSeen
	if err := tx.Checkins().Update(ctx, c); err != nil {
		return err
	}
	appt, err := tx.Appointments().Get(ctx, c.AppointmentID)
	if err != nil {
		return missing(err, "Appointment not found")
	}
	if lifecycle.Can(appt.Status, lifecycle.ActionCall) {
		if err := appt.Apply(lifecycle.ActionCall); err != nil {
			return err
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
	}
	return tx.VisitCalls().Create(ctx, &models.VisitCall{
		AppointmentID:  c.AppointmentID,
		ScheduleID:     c.ScheduleID,
		TicketSequence: c.TicketSequence,
		CalledAt:       s.deps.now(),
		CallType:       models.CallTypeCall,
		CallStatus:     models.CallActive,
	})
}

// MarkNoShow records that a checked-in patient did not show up.
func (s *QueueService) MarkNoShow(ctx context.Context, doctorID, scheduleID, checkinID string) (*TicketResult, error) {
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		c, err := s.scheduleCheckin(ctx, tx, doctorID, scheduleID, checkinID)
		if err != nil {
			return err
		}
		if c.Status == models.CheckinNoShow {
			return invalid("Patient is already marked as a no-show")
		}
		appt, err := tx.Appointments().Get(ctx, c.AppointmentID)
		if err != nil {
			return missing(err, "Appointment not found")
		}
		if err := markNoShow(ctx, s.deps, tx, appt, c, "Marked as no-show by doctor"); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "patient_no_show", "appointment", appt.ID, map[string]interface{}{
			"ticket_number": c.TicketNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordNoShow("doctor")
	s.changed(ctx, scheduleID)
	return &TicketResult{Message: "Patient marked as no-show."}, nil
}

// markNoShow moves an appointment and its ticket to no_show, expires open
// calls and records the infraction.
func markNoShow(ctx context.Context, d *Deps, tx repository.Store, appt *models.Appointment, c *models.Checkin, notes string) error {
	if err := appt.Apply(lifecycle.ActionMarkNoShow); err != nil {
		return invalid("%s", err.Error())
	}
	if err := tx.Appointments().Update(ctx, appt); err != nil {
		return err
	}
	if c != nil {
		c.Status = models.CheckinNoShow
		if err := tx.Checkins().Update(ctx, c); err != nil {
			return err
		}
	}
	calls, err := tx.VisitCalls().ListActive(ctx, appt.ID, timeZero)
	if err != nil {
		return err
	}
	for i := range calls {
		calls[i].CallStatus = models.CallExpired
		if err := tx.VisitCalls().Update(ctx, &calls[i]); err != nil {
			return err
		}
	}
	_, err = d.recordNoShow(ctx, tx, appt.PatientID, appt.ID, notes)
	return err
}

// ReCheckIn puts a no-show patient back in the queue.
func (s *QueueService) ReCheckIn(ctx context.Context, doctorID, scheduleID, checkinID string) (*TicketResult, error) {
	var c *models.Checkin
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		if c, err = s.scheduleCheckin(ctx, tx, doctorID, scheduleID, checkinID); err != nil {
			return err
		}
		if c, err = reCheckIn(ctx, tx, c); err != nil {
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "patient_re_checked_in", "appointment", c.AppointmentID, map[string]interface{}{
			"ticket_number": c.TicketNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, scheduleID)
	return &TicketResult{
		Message:        "Patient checked in again.",
		TicketNumber:   c.TicketNumber,
		TicketSequence: c.TicketSequence,
	}, nil
}

// reCheckIn re-queues a no-show ticket. With more than reCheckInSlot patients
// waiting, the ticket goes right after the third of them and later tickets
// move back by one; otherwise it goes to the end of the queue.
func reCheckIn(ctx context.Context, tx repository.Store, c *models.Checkin) (*models.Checkin, error) {
	if c.Status != models.CheckinNoShow {
		return nil, invalid("Patient is not marked as a no-show and cannot be checked in again")
	}
	room, err := tx.RoomDays().GetForUpdate(ctx, c.ScheduleID)
	if err != nil {
		return nil, missing(err, "The clinic is not open yet or has closed")
	}
	active, err := tx.Checkins().List(ctx, repository.CheckinFilter{
		ScheduleID:    c.ScheduleID,
		Statuses:      []models.CheckinStatus{models.CheckinWaiting},
		AfterSequence: room.CurrentCalledSequence,
	})
	if err != nil {
		return nil, err
	}
	others := active[:0]
	for _, a := range active {
		if a.ID != c.ID {
			others = append(others, a)
		}
	}

	var seq int
	if len(others) > reCheckInSlot {
		seq = others[reCheckInSlot-1].TicketSequence + 1
		// Every later ticket moves back, no-shows included, so sequences stay unique.
		later, err := tx.Checkins().List(ctx, repository.CheckinFilter{
			ScheduleID:    c.ScheduleID,
			AfterSequence: seq - 1,
		})
		if err != nil {
			return nil, err
		}
		// Shift from the back so no two tickets share a sequence mid-way.
		for i := len(later) - 1; i >= 0; i-- {
			if later[i].ID == c.ID {
				continue
			}
			later[i].SetSequence(later[i].TicketSequence + 1)
			if err := tx.Checkins().Update(ctx, &later[i]); err != nil {
				return nil, err
			}
		}
		room.NextSequence++
	} else {
		seq = room.TakeSequence()
	}
	if err := tx.RoomDays().Update(ctx, room); err != nil {
		return nil, err
	}

	c.SetSequence(seq)
	c.Status = models.CheckinWaiting
	if err := tx.Checkins().Update(ctx, c); err != nil {
		return nil, err
	}

	appt, err := tx.Appointments().Get(ctx, c.AppointmentID)
	if err != nil {
		return nil, missing(err, "Appointment not found")
	}
	if appt.Status == lifecycle.StatusNoShow {
		if err := appt.Apply(lifecycle.ActionReCheckIn); err != nil {
			return nil, err
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// issueTicket puts an appointment with no check-in record at the end of the
// open queue of its schedule and applies action to it.
func issueTicket(ctx context.Context, d *Deps, tx repository.Store, appt *models.Appointment, action lifecycle.Action) (*models.Checkin, error) {
	if appt.Date != d.today() {
		return nil, invalid("Only today's appointments can be checked in")
	}
	room, err := tx.RoomDays().GetForUpdate(ctx, appt.ScheduleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("The clinic is not open, cannot check in")
	}
	if err != nil {
		return nil, err
	}
	if err := appt.Apply(action); err != nil {
		return nil, invalid("Appointment status is '%s', cannot check in", appt.Status)
	}
	c := &models.Checkin{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		ScheduleID:    appt.ScheduleID,
		CheckinTime:   d.now(),
		Method:        models.CheckinOnsite,
		Status:        models.CheckinWaiting,
	}
	c.SetSequence(room.TakeSequence())
	if err := tx.RoomDays().Update(ctx, room); err != nil {
		return nil, err
	}
	if err := tx.Checkins().Create(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.Appointments().Update(ctx, appt); err != nil {
		return nil, err
	}
	return c, nil
}

// ManualCheckIn checks a patient in at the doctor's desk.
func (s *QueueService) ManualCheckIn(ctx context.Context, doctorID, scheduleID, appointmentID string) (*TicketResult, error) {
	var res *TicketResult
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.ownSchedule(ctx, tx, doctorID, scheduleID); err != nil {
			return err
		}
		appt, err := tx.Appointments().Get(ctx, appointmentID)
		if err != nil || appt.ScheduleID != scheduleID {
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			return notFound("Appointment not found or does not belong to this schedule")
		}
		if appt.Date != s.deps.today() {
			return invalid("Only today's appointments can be checked in")
		}
		if _, err := tx.RoomDays().GetForUpdate(ctx, scheduleID); errors.Is(err, repository.ErrNotFound) {
			return invalid("The clinic is not open, cannot check in")
		} else if err != nil {
			return err
		}

		existing, err := tx.Checkins().GetByAppointment(ctx, appointmentID)
		switch {
		case err == nil && existing.Status == models.CheckinWaiting:
			return invalid("Patient is already checked in")
		case err == nil && existing.Status == models.CheckinNoShow:
			c, err := reCheckIn(ctx, tx, existing)
			if err != nil {
				return err
			}
			res = &TicketResult{Message: "Patient checked in again.", TicketNumber: c.TicketNumber, TicketSequence: c.TicketSequence}
		case err == nil:
			existing.Status = models.CheckinWaiting
			if err := tx.Checkins().Update(ctx, existing); err != nil {
				return err
			}
			res = &TicketResult{Message: "Patient checked in.", TicketNumber: existing.TicketNumber, TicketSequence: existing.TicketSequence}
		case errors.Is(err, repository.ErrNotFound):
			action := lifecycle.ActionCheckIn
			if appt.Status == lifecycle.StatusNoShow {
				action = lifecycle.ActionReCheckIn
			}
			c, err := issueTicket(ctx, s.deps, tx, appt, action)
			if err != nil {
				return err
			}
			s.deps.Metrics.RecordCheckin(string(models.CheckinOnsite))
			res = &TicketResult{Message: "Patient checked in.", TicketNumber: c.TicketNumber, TicketSequence: c.TicketSequence}
		default:
			return err
		}
		return s.deps.audit(ctx, tx, doctorID, "manual_check_in", "appointment", appointmentID, map[string]interface{}{
			"ticket_number": res.TicketNumber,
		})
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, scheduleID)
	return res, nil
}

// StartConsult moves a called patient into the consultation.
func (s *QueueService) StartConsult(ctx context.Context, doctorID, scheduleID, appointmentID string) (*models.AppointmentView, error) {
	return s.advance(ctx, doctorID, scheduleID, appointmentID, lifecycle.ActionStartConsult)
}

// Complete finishes a consultation.
func (s *QueueService) Complete(ctx context.Context, doctorID, scheduleID, appointmentID string) (*models.AppointmentView, error) {
	return s.advance(ctx, doctorID, scheduleID, appointmentID, lifecycle.ActionComplete)
}

func (s *QueueService) advance(ctx context.Context, doctorID, scheduleID, appointmentID string, action lifecycle.Action) (*models.AppointmentView, error) {
	var appt *models.Appointment
	err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := s.ownSchedule(ctx, tx, doctorID, scheduleID); err != nil {
			return err
		}
		var err error
		appt, err = tx.Appointments().Get(ctx, appointmentID)
		if err != nil || appt.ScheduleID != scheduleID {
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			return notFound("Appointment not found or does not belong to this schedule")
		}
		if err := appt.Apply(action); err != nil {
			return invalid("Cannot %s an appointment that is %s", action, appt.Status)
		}
		if err := tx.Appointments().Update(ctx, appt); err != nil {
			return err
		}
		calls, err := tx.VisitCalls().ListActive(ctx, appt.ID, timeZero)
		if err != nil {
			return err
		}
		for i := range calls {
			calls[i].CallStatus = models.CallAttended
			if err := tx.VisitCalls().Update(ctx, &calls[i]); err != nil {
				return err
			}
		}
		return s.deps.audit(ctx, tx, doctorID, "appointment_"+string(action), "appointment", appt.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, scheduleID)
	v := models.NewAppointmentView(*appt, models.RoleDoctor, nil, nil)
	return &v, nil
}

// SweepNoShows marks patients who did not answer a call within the grace
// period as no-shows. It returns how many were marked.
func (s *QueueService) SweepNoShows(ctx context.Context) (int, error) {
	cutoff := s.deps.now().Add(-s.deps.Clinic.NoShowGrace)
	calls, err := s.deps.Store.VisitCalls().ListActive(ctx, "", cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	touched := map[string]bool{}
	for _, call := range calls {
		noShow := false
		err := s.deps.Store.Transaction(ctx, func(tx repository.Store) error {
			appt, err := tx.Appointments().Get(ctx, call.AppointmentID)
			if err != nil {
				return missing(err, "Appointment not found")
			}
			if appt.Status != lifecycle.StatusCalled {
				// The patient showed up, or someone else already handled the call.
				call.CallStatus = models.CallAttended
				if appt.Status == lifecycle.StatusNoShow || appt.Status == lifecycle.StatusCancelled {
					call.CallStatus = models.CallExpired
				}
				return tx.VisitCalls().Update(ctx, &call)
			}
			c, err := tx.Checkins().GetByAppointment(ctx, appt.ID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err := markNoShow(ctx, s.deps, tx, appt, c, "Did not answer the call"); err != nil {
				return err
			}
			noShow = true
			return s.deps.audit(ctx, tx, models.SystemActor, "patient_no_show", "appointment", appt.ID, map[string]interface{}{
				"called_at": call.CalledAt,
			})
		})
		if err != nil {
			s.deps.Log.Error("no-show sweep failed",
				zap.String("appointment_id", call.AppointmentID),
				zap.Error(err))
			continue
		}
		if noShow {
			marked++
			touched[call.ScheduleID] = true
			s.deps.Metrics.RecordNoShow("sweep")
		}
	}
	for id := range touched {
		s.changed(ctx, id)
	}
	if marked > 0 {
		s.deps.Log.Info("no-show sweep finished", zap.Int("marked", marked))
	}
	return marked, nil
}

// changed drops cached queue views of a schedule and pushes the board state.
func (s *QueueService) changed(ctx context.Context, scheduleID string) {
	s.deps.Cache.Invalidate(ctx, scheduleID)
	room, err := s.deps.Store.RoomDays().Get(ctx, scheduleID)
	if err != nil {
		return
	}
	waiting, err := s.waiting(ctx, s.deps.Store, room)
	if err != nil {
		s.deps.Log.Warn("queue board refresh failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return
	}
	s.deps.Metrics.SetQueueWaiting(scheduleID, len(waiting))
	s.deps.publish(ctx, notify.Event{
		Kind:          notify.KindBoardUpdate,
		ScheduleID:    scheduleID,
		CurrentNumber: models.TicketNumber(room.CurrentCalledSequence),
		WaitingCount:  len(waiting),
	})
}

func (s *QueueService) scheduleCheckin(ctx context.Context, tx repository.Store, doctorID, scheduleID, checkinID string) (*models.Checkin, error) {
	if _, err := s.ownSchedule(ctx, tx, doctorID, scheduleID); err != nil {
		return nil, err
	}
	c, err := tx.Checkins().Get(ctx, checkinID)
	if err != nil || c.ScheduleID != scheduleID {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, notFound("Check-in record not found")
	}
	return c, nil
}
