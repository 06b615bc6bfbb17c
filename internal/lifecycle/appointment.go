// Package lifecycle owns the appointment and schedule state machines.
// Every status change in the server goes through Transition, and the
// per-record allowed_actions field is computed from the same table.
package lifecycle

import (
	"errors"
	"fmt"
	"sort"
)

// AppointmentStatus is the status of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusWaitlist  AppointmentStatus = "waitlist"
	StatusCheckedIn AppointmentStatus = "checked_in"
	StatusWaiting   AppointmentStatus = "waiting"
	StatusCalled    AppointmentStatus = "called"
	StatusInConsult AppointmentStatus = "in_consult"
	StatusCompleted AppointmentStatus = "completed"
	StatusNoShow    AppointmentStatus = "no_show"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Statuses lists every appointment status in lifecycle order.
var Statuses = []AppointmentStatus{
	StatusScheduled, StatusConfirmed, StatusWaitlist, StatusCheckedIn, StatusWaiting,
	StatusCalled, StatusInConsult, StatusCompleted, StatusNoShow, StatusCancelled,
}

// ParseStatus validates a status string.
func ParseStatus(s string) (AppointmentStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status: %q", s)
}

// Action is something a caller can do to an appointment.
type Action string

const (
	ActionConfirm      Action = "confirm"
	ActionCancel       Action = "cancel"
	ActionPromote      Action = "promote"
	ActionCheckIn      Action = "check_in"
	ActionEnqueue      Action = "enqueue"
	ActionCall         Action = "call"
	ActionStartConsult Action = "start_consult"
	ActionComplete     Action = "complete"
	ActionMarkNoShow   Action = "mark_no_show"
	ActionReCheckIn    Action = "re_check_in"

	// ActionViewQueue changes nothing; it marks statuses whose queue position can be polled.
	ActionViewQueue Action = "view_queue"
)

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; ok || a == ActionViewQueue {
		return a, nil
	}
	return "", fmt.Errorf("unknown appointment action: %q", s)
}

// Actor is the role of whoever performs an action.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorDoctor  Actor = "doctor"
	ActorAdmin   Actor = "admin"
	ActorSystem  Actor = "system"
)

// ErrTransition is returned when an action is not allowed from the current status.
var ErrTransition = errors.New("illegal appointment transition")

type transition struct {
	from []AppointmentStatus
	to   AppointmentStatus
}

var transitions = map[Action]transition{
	ActionConfirm:      {from: []AppointmentStatus{StatusScheduled}, to: StatusConfirmed},
	ActionCancel:       {from: []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusWaitlist}, to: StatusCancelled},
	ActionPromote:      {from: []AppointmentStatus{StatusWaitlist}, to: StatusScheduled},
	ActionCheckIn:      {from: []AppointmentStatus{StatusScheduled, StatusConfirmed}, to: StatusCheckedIn},
	ActionEnqueue:      {from: []AppointmentStatus{StatusCheckedIn}, to: StatusWaiting},
	ActionCall:         {from: []AppointmentStatus{StatusCheckedIn, StatusWaiting}, to: StatusCalled},
	ActionStartConsult: {from: []AppointmentStatus{StatusCalled}, to: StatusInConsult},
	ActionComplete:     {from: []AppointmentStatus{StatusCalled, StatusInConsult}, to: StatusCompleted},
	ActionMarkNoShow: {
		from: []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusWaiting, StatusCalled},
		to:   StatusNoShow,
	},
	ActionReCheckIn: {from: []AppointmentStatus{StatusNoShow}, to: StatusCheckedIn},
}

// queueStatuses are the statuses whose holder sits in a clinic queue.
var queueStatuses = []AppointmentStatus{StatusCheckedIn, StatusWaiting}

var actorActions = map[Actor][]Action{
	ActorPatient: {ActionCancel, ActionCheckIn, ActionViewQueue},
	ActorDoctor:  {ActionConfirm, ActionCall, ActionStartConsult, ActionComplete, ActionMarkNoShow, ActionReCheckIn},
	ActorAdmin:   {ActionConfirm, ActionCancel, ActionPromote, ActionMarkNoShow, ActionReCheckIn},
	ActorSystem: {
		ActionConfirm, ActionCancel, ActionPromote, ActionCheckIn, ActionEnqueue, ActionCall,
		ActionStartConsult, ActionComplete, ActionMarkNoShow, ActionReCheckIn,
	},
}

// Transition returns the status reached by applying action to from.
func Transition(from AppointmentStatus, action Action) (AppointmentStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return from, fmt.Errorf("%w: unknown action %q", ErrTransition, action)
	}
	if !contains(t.from, from) {
		return from, fmt.Errorf("%w: cannot %s an appointment that is %s", ErrTransition, action, from)
	}
	return t.to, nil
}

// Can reports whether action is applicable to an appointment in status.
func Can(status AppointmentStatus, action Action) bool {
	if action == ActionViewQueue {
		return contains(queueStatuses, status)
	}
	t, ok := transitions[action]
	return ok && contains(t.from, status)
}

// CanPerform reports whether actor may apply action to an appointment in status.
func CanPerform(actor Actor, status AppointmentStatus, action Action) bool {
	for _, a := range actorActions[actor] {
		if a == action {
			return Can(status, action)
		}
	}
	return false
}

// AllowedActions lists, in a stable order, what actor may do with an appointment in status.
func AllowedActions(status AppointmentStatus, actor Actor) []Action {
	actions := make([]Action, 0, 4)
	for _, a := range actorActions[actor] {
		if Can(status, a) {
			actions = append(actions, a)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// IsActive reports whether the appointment still claims its slot.
func IsActive(status AppointmentStatus) bool {
	switch status {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return false
	}
	return true
}

// HoldsSeat reports whether the appointment consumes schedule capacity.
func HoldsSeat(status AppointmentStatus) bool {
	return IsActive(status) && status != StatusWaitlist
}

// ActiveStatuses lists the statuses for which IsActive is true.
func ActiveStatuses() []AppointmentStatus {
	var out []AppointmentStatus
	for _, s := range Statuses {
		if IsActive(s) {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []AppointmentStatus, s AppointmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
