package client

import "time"

// TokenPair is the body of the token endpoint.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	LoginID        string     `json:"login_id,omitempty"`
	Role           string     `json:"role"`
	Phone          string     `json:"phone,omitempty"`
	DateOfBirth    string     `json:"dob,omitempty"`
	CardNumber     string     `json:"card_number,omitempty"`
	Specialty      string     `json:"specialty,omitempty"`
	IsActive       bool       `json:"is_active"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// Doctor is an entry of the public doctor list.
type Doctor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

type Schedule struct {
	ID               string `json:"id"`
	DoctorID         string `json:"doctor_id"`
	RecurringGroupID string `json:"recurring_group_id,omitempty"`
	Date             string `json:"date"`
	TimePeriod       string `json:"time_period"`
	Status           string `json:"status"`
	MaxPatients      int    `json:"max_patients"`
	BookedPatients   int    `json:"booked_patients"`
	DoctorName       string `json:"doctor_name,omitempty"`
	Specialty        string `json:"specialty,omitempty"`
	AvailableSlots   int    `json:"available_slots,omitempty"`
}

// ScheduleFilter narrows schedule listings. Zero values do not filter.
type ScheduleFilter struct {
	DoctorIDs  []string
	Date       string
	Month      int
	Year       int
	TimePeriod string
	Specialty  string
	Skip       int
	Limit      int
}

type Appointment struct {
	ID             string   `json:"id"`
	PatientID      string   `json:"patient_id"`
	DoctorID       string   `json:"doctor_id"`
	ScheduleID     string   `json:"schedule_id"`
	Date           string   `json:"date"`
	TimePeriod     string   `json:"time_period"`
	Status         string   `json:"status"`
	DoctorName     string   `json:"doctor_name,omitempty"`
	Specialty      string   `json:"specialty,omitempty"`
	PatientName    string   `json:"patient_name,omitempty"`
	TicketNumber   string   `json:"ticket_number,omitempty"`
	AllowedActions []string `json:"allowed_actions"`
}

// Can reports whether the caller may perform action on the appointment.
func (a Appointment) Can(action string) bool {
	for _, x := range a.AllowedActions {
		if x == action {
			return true
		}
	}
	return false
}

type BookingRequest struct {
	DoctorID   string `json:"doctor_id"`
	Date       string `json:"date"`
	TimePeriod string `json:"time_period"`
}

type CheckinResult struct {
	AppointmentID  string `json:"appointment_id"`
	PatientID      string `json:"patient_id"`
	TicketNumber   string `json:"ticket_number"`
	TicketSequence int    `json:"ticket_sequence"`
	Status         string `json:"status"`
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

type ClinicQueueStatus struct {
	ScheduleID    string `json:"schedule_id"`
	CurrentNumber string `json:"current_number"`
	NextSequence  int    `json:"next_sequence"`
	WaitingCount  int    `json:"waiting_count"`
	ClinicStatus  string `json:"clinic_status"`
}

type WaitingPatient struct {
	PatientID      string `json:"patient_id"`
	PatientName    string `json:"patient_name"`
	TicketNumber   string `json:"ticket_number"`
	TicketSequence int    `json:"ticket_sequence"`
	CheckinTime    string `json:"checkin_time"`
	AppointmentID  string `json:"appointment_id"`
	CheckinID      string `json:"checkin_id"`
	Status         string `json:"status"`
}

type TicketResult struct {
	Message        string `json:"message"`
	TicketNumber   string `json:"ticket_number,omitempty"`
	TicketSequence int    `json:"ticket_sequence,omitempty"`
}

type LeaveRequest struct {
	ID         string `json:"id"`
	ScheduleID string `json:"schedule_id"`
	DoctorID   string `json:"doctor_id"`
	Reason     string `json:"reason"`
	Status     string `json:"status"`
	Date       string `json:"date,omitempty"`
	TimePeriod string `json:"time_period,omitempty"`
	DoctorName string `json:"doctor_name,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
}

type MedicalRecord struct {
	ID            string    `json:"id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	AppointmentID string    `json:"appointment_id,omitempty"`
	RecordDate    time.Time `json:"record_date"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Details       string    `json:"details"`
}

type Notification struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Subject       string     `json:"subject"`
	Content       string     `json:"content"`
	AppointmentID string     `json:"appointment_id,omitempty"`
	Status        string     `json:"status"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	Action     string    `json:"action"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type AuditPage struct {
	Items []AuditLog `json:"items"`
	Total int64      `json:"total"`
}

// AuditFilter narrows audit log listings. Zero values do not filter.
type AuditFilter struct {
	UserID    string
	Action    string
	StartDate string
	EndDate   string
	Skip      int
	Limit     int
}

type ClinicLoad struct {
	ClinicID        string `json:"clinic_id"`
	ClinicName      string `json:"clinic_name"`
	Specialty       string `json:"specialty"`
	TimePeriod      string `json:"time_period"`
	CurrentPatients int    `json:"current_patients"`
	WaitingCount    int    `json:"waiting_count"`
}

type DashboardStats struct {
	TotalAppointmentsToday int          `json:"total_appointments_today"`
	CheckedInCount         int          `json:"checked_in_count"`
	WaitingCount           int          `json:"waiting_count"`
	CompletedCount         int          `json:"completed_count"`
	ClinicLoad             []ClinicLoad `json:"clinic_load"`
}
