package models

import (
	"hospital-booking-server/internal/lifecycle"
)

// Appointment is a patient's booking into a schedule.
type Appointment struct {
	BaseModel
	PatientID  string                      `gorm:"size:36;index" json:"patient_id"`
	DoctorID   string                      `gorm:"size:36;index" json:"doctor_id"`
	ScheduleID string                      `gorm:"size:36;index" json:"schedule_id"`
	Date       string                      `gorm:"size:10;index" json:"date"`
	TimePeriod lifecycle.TimePeriod        `gorm:"size:20" json:"time_period"`
	Status     lifecycle.AppointmentStatus `gorm:"size:20;index;default:'scheduled'" json:"status"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"-"`
}

// Apply moves the appointment through the lifecycle.
func (a *Appointment) Apply(action lifecycle.Action) error {
	next, err := lifecycle.Transition(a.Status, action)
	if err != nil {
		return err
	}
	a.Status = next
	return nil
}

// AppointmentView is an appointment as returned to a caller, with the
// actions that caller may take on it.
type AppointmentView struct {
	Appointment
	DoctorName     string             `json:"doctor_name,omitempty"`
	Specialty      string             `json:"specialty,omitempty"`
	PatientName    string             `json:"patient_name,omitempty"`
	TicketNumber   string             `json:"ticket_number,omitempty"`
	AllowedActions []lifecycle.Action `json:"allowed_actions"`
}

// NewAppointmentView decorates a for a caller with role.
func NewAppointmentView(a Appointment, role Role, doctor, patient *User) AppointmentView {
	v := AppointmentView{
		Appointment:    a,
		AllowedActions: lifecycle.AllowedActions(a.Status, role.Actor()),
	}
	if doctor != nil {
		v.DoctorName = doctor.Name
		v.Specialty = doctor.Specialty
	}
	if patient != nil {
		v.PatientName = patient.Name
	}
	return v
}
