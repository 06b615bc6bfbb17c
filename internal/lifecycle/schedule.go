package lifecycle

import "fmt"

// ScheduleStatus is the status of a doctor's clinic slot.
type ScheduleStatus string

const (
	ScheduleAvailable     ScheduleStatus = "available"
	ScheduleOpen          ScheduleStatus = "open"
	ScheduleClosed        ScheduleStatus = "closed"
	ScheduleLeavePending  ScheduleStatus = "leave_pending"
	ScheduleLeaveApproved ScheduleStatus = "leave_approved"
)

// TimePeriod is one of the three daily clinic sessions.
type TimePeriod string

const (
	Morning   TimePeriod = "morning"
	Afternoon TimePeriod = "afternoon"
	Night     TimePeriod = "night"
)

// TimePeriods lists the sessions in day order.
var TimePeriods = []TimePeriod{Morning, Afternoon, Night}

// ParseTimePeriod validates a time period string.
func ParseTimePeriod(s string) (TimePeriod, error) {
	for _, p := range TimePeriods {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown time period: %q", s)
}

// ScheduleEvent is something that moves a schedule between statuses.
type ScheduleEvent string

const (
	EventOpenClinic   ScheduleEvent = "open_clinic"
	EventCloseClinic  ScheduleEvent = "close_clinic"
	EventRequestLeave ScheduleEvent = "request_leave"
	EventApproveLeave ScheduleEvent = "approve_leave"
	EventRejectLeave  ScheduleEvent = "reject_leave"
)

var scheduleTransitions = map[ScheduleEvent]struct {
	from []ScheduleStatus
	to   ScheduleStatus
}{
	EventOpenClinic:   {from: []ScheduleStatus{ScheduleAvailable, ScheduleOpen, ScheduleClosed}, to: ScheduleOpen},
	EventCloseClinic:  {from: []ScheduleStatus{ScheduleOpen, ScheduleAvailable}, to: ScheduleClosed},
	EventRequestLeave: {from: []ScheduleStatus{ScheduleAvailable, ScheduleLeavePending}, to: ScheduleLeavePending},
	EventApproveLeave: {from: []ScheduleStatus{ScheduleLeavePending}, to: ScheduleLeaveApproved},
	EventRejectLeave:  {from: []ScheduleStatus{ScheduleLeavePending}, to: ScheduleAvailable},
}

// ScheduleTransition returns the status reached by applying event to from.
func ScheduleTransition(from ScheduleStatus, event ScheduleEvent) (ScheduleStatus, error) {
	t, ok := scheduleTransitions[event]
	if !ok {
		return from, fmt.Errorf("%w: unknown schedule event %q", ErrTransition, event)
	}
	for _, s := range t.from {
		if s == from {
			return t.to, nil
		}
	}
	return from, fmt.Errorf("%w: cannot %s a schedule that is %s", ErrTransition, event, from)
}

// Bookable reports whether patients may book into a schedule in status.
func Bookable(status ScheduleStatus) bool {
	return status == ScheduleAvailable || status == ScheduleOpen
}
