package models

import (
	"hospital-booking-server/internal/lifecycle"
)

// Schedule is one clinic session of a doctor on a date.
type Schedule struct {
	BaseModel
	DoctorID         string                   `gorm:"size:36;not null;uniqueIndex:idx_schedule_slot" json:"doctor_id"`
	RecurringGroupID *string                  `gorm:"size:36;index" json:"recurring_group_id,omitempty"`
	Date             string                   `gorm:"size:10;not null;uniqueIndex:idx_schedule_slot" json:"date"`
	TimePeriod       lifecycle.TimePeriod     `gorm:"size:20;not null;uniqueIndex:idx_schedule_slot" json:"time_period"`
	Status           lifecycle.ScheduleStatus `gorm:"size:20;default:'available'" json:"status"`
	MaxPatients      int                      `gorm:"default:10" json:"max_patients"`
	BookedPatients   int                      `gorm:"default:0" json:"booked_patients"`

	Doctor *User `gorm:"foreignKey:DoctorID" json:"-"`
}

// HasCapacity reports whether another seat can be booked.
func (s *Schedule) HasCapacity() bool {
	return s.BookedPatients < s.MaxPatients
}

// ScheduleView is a schedule as listed to clients.
type ScheduleView struct {
	Schedule
	DoctorName     string `json:"doctor_name"`
	Specialty      string `json:"specialty"`
	AvailableSlots int    `json:"available_slots"`
}

// NewScheduleView joins a schedule with its doctor.
func NewScheduleView(s Schedule, doctor *User) ScheduleView {
	v := ScheduleView{Schedule: s}
	if doctor != nil {
		v.DoctorName = doctor.Name
		v.Specialty = doctor.Specialty
	}
	if free := s.MaxPatients - s.BookedPatients; free > 0 {
		v.AvailableSlots = free
	}
	return v
}
