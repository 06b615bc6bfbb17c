package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

func (c *Client) Register(ctx context.Context, r Registration) (*User, error) {
	if err := ValidateRegistration(r); err != nil {
		return nil, err
	}
	var u User
	if err := c.call(ctx, http.MethodPost, "/register/patient", nil, r, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodGet, "/profile/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile sends only the given fields.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string) (*User, error) {
	var u User
	if err := c.call(ctx, http.MethodPut, "/profile/me", nil, fields, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) PublicDoctors(ctx context.Context, specialty string) ([]Doctor, error) {
	q := url.Values{}
	if specialty != "" {
		q.Set("specialty", specialty)
	}
	var out []Doctor
	if err := c.call(ctx, http.MethodGet, "/public/doctors", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f ScheduleFilter) values() url.Values {
	q := url.Values{}
	for _, id := range f.DoctorIDs {
		q.Add("doctor_id", id)
	}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setInt := func(k string, v int) {
		if v != 0 {
			q.Set(k, strconv.Itoa(v))
		}
	}
	set("date", f.Date)
	set("time_period", f.TimePeriod)
	set("specialty", f.Specialty)
	setInt("month", f.Month)
	setInt("year", f.Year)
	setInt("skip", f.Skip)
	setInt("limit", f.Limit)
	return q
}

func (c *Client) PublicSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	var out []Schedule
	if err := c.call(ctx, http.MethodGet, "/public/schedules", f.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Schedules lists schedules for administrators.
func (c *Client) Schedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	var out []Schedule
	if err := c.call(ctx, http.MethodGet, "/schedules", f.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSchedule(ctx context.Context, doctorID, date, period string, maxPatients int) (*Schedule, error) {
	body := map[string]interface{}{
		"doctor_id":    doctorID,
		"date":         date,
		"time_period":  period,
		"max_patients": maxPatients,
	}
	var s Schedule
	if err := c.call(ctx, http.MethodPost, "/schedules", nil, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(id), nil, nil, nil)
}

// DoctorSchedules lists the logged-in doctor's schedules.
func (c *Client) DoctorSchedules(ctx context.Context, f ScheduleFilter) ([]Schedule, error) {
	var out []Schedule
	if err := c.call(ctx, http.MethodGet, "/doctor/schedules", f.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	if err := c.call(ctx, http.MethodGet, "/patient/appointments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Book reserves a seat, or a waitlist place when the session is full.
func (c *Client) Book(ctx context.Context, r BookingRequest) (*Appointment, error) {
	var a Appointment
	if err := c.call(ctx, http.MethodPost, "/patient/appointments", nil, r, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	if err := c.call(ctx, http.MethodDelete, "/patient/appointments/"+url.PathEscape(id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) DoctorAppointments(ctx context.Context, date string) ([]Appointment, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out []Appointment
	if err := c.call(ctx, http.MethodGet, "/doctor/appointments", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckIn checks the patient in online.
func (c *Client) CheckIn(ctx context.Context, appointmentID string) (*CheckinResult, error) {
	var r CheckinResult
	if err := c.call(ctx, http.MethodPost, "/checkin/"+url.PathEscape(appointmentID), nil,
		map[string]string{"method": "online"}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) QueueStatus(ctx context.Context, appointmentID string) (*QueueStatus, error) {
	var s QueueStatus
	if err := c.call(ctx, http.MethodGet, "/checkin/queue/"+url.PathEscape(appointmentID), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func sessionPath(scheduleID, action string) string {
	return "/doctor/schedules/" + url.PathEscape(scheduleID) + "/" + action
}

func (c *Client) OpenClinic(ctx context.Context, scheduleID string) (*ClinicQueueStatus, error) {
	var s ClinicQueueStatus
	if err := c.call(ctx, http.MethodPost, sessionPath(scheduleID, "open-clinic"), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CloseClinic(ctx context.Context, scheduleID string) error {
	return c.call(ctx, http.MethodPost, sessionPath(scheduleID, "close-clinic"), nil, nil, nil)
}

func (c *Client) ClinicQueue(ctx context.Context, scheduleID string) (*ClinicQueueStatus, error) {
	var s ClinicQueueStatus
	if err := c.call(ctx, http.MethodGet, sessionPath(scheduleID, "queue-status"), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) WaitingPatients(ctx context.Context, scheduleID string) ([]WaitingPatient, error) {
	var out []WaitingPatient
	if err := c.call(ctx, http.MethodGet, sessionPath(scheduleID, "waiting-patients"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CallNext(ctx context.Context, scheduleID string) (*TicketResult, error) {
	var r TicketResult
	if err := c.call(ctx, http.MethodPost, sessionPath(scheduleID, "call-next-patient"), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) MarkNoShow(ctx context.Context, scheduleID, checkinID string) (*TicketResult, error) {
	var r TicketResult
	path := sessionPath(scheduleID, "checkins/"+url.PathEscape(checkinID)+"/mark-no-show")
	if err := c.call(ctx, http.MethodPost, path, nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ReCheckIn(ctx context.Context, scheduleID, checkinID string) (*TicketResult, error) {
	var r TicketResult
	path := sessionPath(scheduleID, "checkins/"+url.PathEscape(checkinID)+"/re-check-in")
	if err := c.call(ctx, http.MethodPost, path, nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) CompleteAppointment(ctx context.Context, scheduleID, appointmentID string) (*Appointment, error) {
	var a Appointment
	path := sessionPath(scheduleID, "appointments/"+url.PathEscape(appointmentID)+"/complete")
	if err := c.call(ctx, http.MethodPost, path, nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) RequestLeave(ctx context.Context, date, period, reason string) (*LeaveRequest, error) {
	body := map[string]string{"date": date, "time_period": period, "reason": reason}
	var l LeaveRequest
	if err := c.call(ctx, http.MethodPost, "/doctor/me/leave-requests", nil, body, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) PendingLeaveRequests(ctx context.Context) ([]LeaveRequest, error) {
	var out []LeaveRequest
	if err := c.call(ctx, http.MethodGet, "/admin/leave-requests", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReviewLeave approves or rejects the leave request of a schedule.
func (c *Client) ReviewLeave(ctx context.Context, scheduleID string, approve bool) (*LeaveRequest, error) {
	action := "reject"
	if approve {
		action = "approve"
	}
	var l LeaveRequest
	if err := c.call(ctx, http.MethodPut, "/admin/leave-requests/"+url.PathEscape(scheduleID)+"/"+action, nil, nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) MedicalRecords(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	q := url.Values{}
	if patientID != "" {
		q.Set("patient_id", patientID)
	}
	var out []MedicalRecord
	if err := c.call(ctx, http.MethodGet, "/medical-records", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Notifications lists the inbox; a non-zero since returns only newer entries.
func (c *Client) Notifications(ctx context.Context, since time.Time) ([]Notification, error) {
	path, q := "/notifications", url.Values{}
	if !since.IsZero() {
		path = "/notifications/new"
		q.Set("since", since.Format(time.RFC3339))
	}
	var out []Notification
	if err := c.call(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f AuditFilter) values() url.Values {
	q := url.Values{}
	for k, v := range map[string]string{
		"user_id":    f.UserID,
		"action":     f.Action,
		"start_date": f.StartDate,
		"end_date":   f.EndDate,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if f.Skip > 0 {
		q.Set("skip", strconv.Itoa(f.Skip))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

func (c *Client) AuditLogs(ctx context.Context, f AuditFilter) (*AuditPage, error) {
	var p AuditPage
	if err := c.call(ctx, http.MethodGet, "/admin/audit-logs", f.values(), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ExportAuditLogs streams the xlsx workbook into w.
func (c *Client) ExportAuditLogs(ctx context.Context, f AuditFilter, w io.Writer) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParamsFromValues(f.values()).
		Get(apiPrefix + "/admin/audit-logs/export")
	if err != nil {
		return fmt.Errorf("export audit logs: %w", err)
	}
	if resp.IsError() {
		return parseError(resp.StatusCode(), resp.Body())
	}
	_, err = w.Write(resp.Body())
	return err
}

func (c *Client) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var s DashboardStats
	if err := c.call(ctx, http.MethodGet, "/admin/dashboard", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
