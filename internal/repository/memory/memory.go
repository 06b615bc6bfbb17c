// Package memory is an in-process repository.Store. It backs the demo
// server (DB_DRIVER=memory) and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
)

type dataset struct {
	users          map[string]models.User
	refreshTokens  map[string]models.RefreshToken
	schedules      map[string]models.Schedule
	appointments   map[string]models.Appointment
	checkins       map[string]models.Checkin
	roomDays       map[string]models.RoomDay
	visitCalls     map[string]models.VisitCall
	leaveRequests  map[string]models.LeaveRequest
	infractions    map[string]models.Infraction
	medicalRecords map[string]models.MedicalRecord
	auditLogs      map[string]models.AuditLog
	notifications  map[string]models.Notification
}

func newDataset() *dataset {
	return &dataset{
		users:          map[string]models.User{},
		refreshTokens:  map[string]models.RefreshToken{},
		schedules:      map[string]models.Schedule{},
		appointments:   map[string]models.Appointment{},
		checkins:       map[string]models.Checkin{},
		roomDays:       map[string]models.RoomDay{},
		visitCalls:     map[string]models.VisitCall{},
		leaveRequests:  map[string]models.LeaveRequest{},
		infractions:    map[string]models.Infraction{},
		medicalRecords: map[string]models.MedicalRecord{},
		auditLogs:      map[string]models.AuditLog{},
		notifications:  map[string]models.Notification{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		users:          cloneMap(d.users),
		refreshTokens:  cloneMap(d.refreshTokens),
		schedules:      cloneMap(d.schedules),
		appointments:   cloneMap(d.appointments),
		checkins:       cloneMap(d.checkins),
		roomDays:       cloneMap(d.roomDays),
		visitCalls:     cloneMap(d.visitCalls),
		leaveRequests:  cloneMap(d.leaveRequests),
		infractions:    cloneMap(d.infractions),
		medicalRecords: cloneMap(d.medicalRecords),
		auditLogs:      cloneMap(d.auditLogs),
		notifications:  cloneMap(d.notifications),
	}
}

func cloneMap[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store is a mutex-guarded repository.Store. Transactions hold the lock for
// their whole duration and restore a snapshot when they fail.
type Store struct {
	mu   *sync.Mutex
	data *dataset
	inTx bool
}

// New returns an empty store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newDataset()}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() repository.UserRepository                   { return users{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository   { return refreshTokens{s} }
func (s *Store) Schedules() repository.ScheduleRepository           { return schedules{s} }
func (s *Store) Appointments() repository.AppointmentRepository     { return appointments{s} }
func (s *Store) Checkins() repository.CheckinRepository             { return checkins{s} }
func (s *Store) RoomDays() repository.RoomDayRepository             { return roomDays{s} }
func (s *Store) VisitCalls() repository.VisitCallRepository         { return visitCalls{s} }
func (s *Store) LeaveRequests() repository.LeaveRequestRepository   { return leaveRequests{s} }
func (s *Store) Infractions() repository.InfractionRepository       { return infractions{s} }
func (s *Store) MedicalRecords() repository.MedicalRecordRepository { return medicalRecords{s} }
func (s *Store) AuditLogs() repository.AuditLogRepository           { return auditLogs{s} }
func (s *Store) Notifications() repository.NotificationRepository   { return notifications{s} }

// Transaction implements repository.Store.
func (s *Store) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true}
	if err := fn(tx); err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func touch(b *models.BaseModel) {
	b.UpdatedAt = time.Now()
}

func get[T any](m map[string]T, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func filter[T any](m map[string]T, keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func page[T any](rows []T, skip, limit int) []T {
	if skip >= len(rows) {
		return []T{}
	}
	rows = rows[skip:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// anyOf reports whether v is in list; an empty list matches everything.
func anyOf[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return len(list) == 0
}

type users struct{ s *Store }

func (r users) unique(u *models.User) error {
	for id, other := range r.s.data.users {
		if id == u.ID {
			continue
		}
		if sameKey(u.Email, other.Email) || sameKey(u.LoginID, other.LoginID) || sameKey(u.CardNumber, other.CardNumber) {
			return repository.ErrDuplicate
		}
	}
	return nil
}

func sameKey(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r users) Create(_ context.Context, u *models.User) error {
	defer r.s.lock()()
	u.EnsureID()
	if err := r.unique(u); err != nil {
		return err
	}
	r.s.data.users[u.ID] = *u
	return nil
}

func (r users) Update(_ context.Context, u *models.User) error {
	defer r.s.lock()()
	if err := r.unique(u); err != nil {
		return err
	}
	touch(&u.BaseModel)
	r.s.data.users[u.ID] = *u
	return nil
}

func (r users) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.users, id)
	return nil
}

func (r users) Get(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock()()
	return get(r.s.data.users, id)
}

func (r users) FindByLogin(_ context.Context, login string) (*models.User, error) {
	defer r.s.lock()()
	if login == "" {
		return nil, repository.ErrNotFound
	}
	for _, u := range r.s.data.users {
		if models.StrVal(u.LoginID) == login || models.StrVal(u.Email) == login {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) FindBy(_ context.Context, field repository.UserField, value string) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.data.users {
		var v *string
		switch field {
		case repository.UserEmail:
			v = u.Email
		case repository.UserLoginID:
			v = u.LoginID
		case repository.UserCardNumber:
			v = u.CardNumber
		}
		if v != nil && *v == value {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r users) List(_ context.Context, f repository.UserFilter) ([]models.User, error) {
	defer r.s.lock()()
	rows := filter(r.s.data.users, func(u models.User) bool {
		return (f.Role == "" || u.Role == f.Role) &&
			(f.Specialty == "" || u.Specialty == f.Specialty) &&
			anyOf(f.IDs, u.ID)
	}, func(a, b models.User) bool { return a.Name < b.Name })
	return page(rows, f.Skip, f.Limit), nil
}

type refreshTokens struct{ s *Store }

func (r refreshTokens) Create(_ context.Context, t *models.RefreshToken) error {
	defer r.s.lock()()
	t.EnsureID()
	r.s.data.refreshTokens[t.ID] = *t
	return nil
}

func (r refreshTokens) Update(_ context.Context, t *models.RefreshToken) error {
	defer r.s.lock()()
	touch(&t.BaseModel)
	r.s.data.refreshTokens[t.ID] = *t
	return nil
}

func (r refreshTokens) FindUsable(_ context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	defer r.s.lock()()
	for _, t := range r.s.data.refreshTokens {
		if t.Token == token && (userID == "" || t.UserID == userID) && t.Usable(now) {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

type schedules struct{ s *Store }

func (r schedules) unique(sc *models.Schedule) error {
	for id, other := range r.s.data.schedules {
		if id != sc.ID && other.DoctorID == sc.DoctorID && other.Date == sc.Date && other.TimePeriod == sc.TimePeriod {
			return repository.ErrDuplicate
		}
	}
	return nil
}

func (r schedules) Create(_ context.Context, sc *models.Schedule) error {
	defer r.s.lock()()
	sc.EnsureID()
	if err := r.unique(sc); err != nil {
		return err
	}
	row := *sc
	row.Doctor = nil
	r.s.data.schedules[sc.ID] = row
	return nil
}

func (r schedules) Update(_ context.Context, sc *models.Schedule) error {
	defer r.s.lock()()
	if err := r.unique(sc); err != nil {
		return err
	}
	touch(&sc.BaseModel)
	row := *sc
	row.Doctor = nil
	r.s.data.schedules[sc.ID] = row
	return nil
}

func (r schedules) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.schedules[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.schedules, id)
	return nil
}

func (r schedules) Get(_ context.Context, id string) (*models.Schedule, error) {
	defer r.s.lock()()
	return get(r.s.data.schedules, id)
}

func (r schedules) GetForUpdate(ctx context.Context, id string) (*models.Schedule, error) {
	return r.Get(ctx, id)
}

func (r schedules) FindSlot(_ context.Context, doctorID, date string, period lifecycle.TimePeriod, _ bool) (*models.Schedule, error) {
	defer r.s.lock()()
	for _, sc := range r.s.data.schedules {
		if sc.DoctorID == doctorID && sc.Date == date && sc.TimePeriod == period {
			return &sc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func periodIndex(p lifecycle.TimePeriod) int {
	for i, v := range lifecycle.TimePeriods {
		if v == p {
			return i
		}
	}
	return len(lifecycle.TimePeriods)
}

func (r schedules) List(_ context.Context, f repository.ScheduleFilter) ([]models.Schedule, error) {
	defer r.s.lock()()
	rows := filter(r.s.data.schedules, func(sc models.Schedule) bool {
		if f.Specialty != "" {
			doc, ok := r.s.data.users[sc.DoctorID]
			if !ok || doc.Specialty != f.Specialty {
				return false
			}
		}
		return anyOf(f.DoctorIDs, sc.DoctorID) &&
			(f.RecurringGroupID == "" || models.StrVal(sc.RecurringGroupID) == f.RecurringGroupID) &&
			(f.Date == "" || sc.Date == f.Date) &&
			(f.DateFrom == "" || sc.Date >= f.DateFrom) &&
			(f.DateTo == "" || sc.Date <= f.DateTo) &&
			(f.TimePeriod == "" || sc.TimePeriod == f.TimePeriod) &&
			anyOf(f.Statuses, sc.Status)
	}, func(a, b models.Schedule) bool {
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return periodIndex(a.TimePeriod) < periodIndex(b.TimePeriod)
	})
	return page(rows, f.Skip, f.Limit), nil
}

type appointments struct{ s *Store }

func (r appointments) Create(_ context.Context, a *models.Appointment) error {
	defer r.s.lock()()
	a.EnsureID()
	row := *a
	row.Patient, row.Doctor = nil, nil
	r.s.data.appointments[a.ID] = row
	return nil
}

func (r appointments) Update(_ context.Context, a *models.Appointment) error {
	defer r.s.lock()()
	touch(&a.BaseModel)
	row := *a
	row.Patient, row.Doctor = nil, nil
	r.s.data.appointments[a.ID] = row
	return nil
}

func (r appointments) Get(_ context.Context, id string) (*models.Appointment, error) {
	defer r.s.lock()()
	return get(r.s.data.appointments, id)
}

func (r appointments) List(_ context.Context, f repository.AppointmentFilter) ([]models.Appointment, error) {
	defer r.s.lock()()
	return filter(r.s.data.appointments, func(a models.Appointment) bool {
		return (f.PatientID == "" || a.PatientID == f.PatientID) &&
			(f.DoctorID == "" || a.DoctorID == f.DoctorID) &&
			(f.ScheduleID == "" || a.ScheduleID == f.ScheduleID) &&
			(f.Date == "" || a.Date == f.Date) &&
			anyOf(f.Statuses, a.Status)
	}, func(a, b models.Appointment) bool {
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

type checkins struct{ s *Store }

func (r checkins) Create(_ context.Context, c *models.Checkin) error {
	defer r.s.lock()()
	c.EnsureID()
	for _, other := range r.s.data.checkins {
		if other.AppointmentID == c.AppointmentID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.checkins[c.ID] = *c
	return nil
}

func (r checkins) Update(_ context.Context, c *models.Checkin) error {
	defer r.s.lock()()
	touch(&c.BaseModel)
	r.s.data.checkins[c.ID] = *c
	return nil
}

func (r checkins) Get(_ context.Context, id string) (*models.Checkin, error) {
	defer r.s.lock()()
	return get(r.s.data.checkins, id)
}

func (r checkins) GetByAppointment(_ context.Context, appointmentID string) (*models.Checkin, error) {
	defer r.s.lock()()
	for _, c := range r.s.data.checkins {
		if c.AppointmentID == appointmentID {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r checkins) FindBySequence(_ context.Context, scheduleID string, seq int) (*models.Checkin, error) {
	defer r.s.lock()()
	for _, c := range r.s.data.checkins {
		if c.ScheduleID == scheduleID && c.TicketSequence == seq {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r checkins) List(_ context.Context, f repository.CheckinFilter) ([]models.Checkin, error) {
	defer r.s.lock()()
	return filter(r.s.data.checkins, func(c models.Checkin) bool {
		return (f.ScheduleID == "" || c.ScheduleID == f.ScheduleID) &&
			anyOf(f.Statuses, c.Status) &&
			c.TicketSequence > f.AfterSequence
	}, func(a, b models.Checkin) bool { return a.TicketSequence < b.TicketSequence }), nil
}

// roomDays is keyed by schedule id.
type roomDays struct{ s *Store }

func (r roomDays) Create(_ context.Context, d *models.RoomDay) error {
	defer r.s.lock()()
	if _, ok := r.s.data.roomDays[d.ScheduleID]; ok {
		return repository.ErrDuplicate
	}
	d.EnsureID()
	r.s.data.roomDays[d.ScheduleID] = *d
	return nil
}

func (r roomDays) Update(_ context.Context, d *models.RoomDay) error {
	defer r.s.lock()()
	touch(&d.BaseModel)
	r.s.data.roomDays[d.ScheduleID] = *d
	return nil
}

func (r roomDays) Delete(_ context.Context, scheduleID string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.roomDays[scheduleID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.roomDays, scheduleID)
	return nil
}

func (r roomDays) Get(_ context.Context, scheduleID string) (*models.RoomDay, error) {
	defer r.s.lock()()
	return get(r.s.data.roomDays, scheduleID)
}

func (r roomDays) GetForUpdate(ctx context.Context, scheduleID string) (*models.RoomDay, error) {
	return r.Get(ctx, scheduleID)
}

type visitCalls struct{ s *Store }

func (r visitCalls) Create(_ context.Context, v *models.VisitCall) error {
	defer r.s.lock()()
	v.EnsureID()
	r.s.data.visitCalls[v.ID] = *v
	return nil
}

func (r visitCalls) Update(_ context.Context, v *models.VisitCall) error {
	defer r.s.lock()()
	touch(&v.BaseModel)
	r.s.data.visitCalls[v.ID] = *v
	return nil
}

func (r visitCalls) ListActive(_ context.Context, appointmentID string, calledBefore time.Time) ([]models.VisitCall, error) {
	defer r.s.lock()()
	return filter(r.s.data.visitCalls, func(v models.VisitCall) bool {
		return v.CallStatus == models.CallActive &&
			(appointmentID == "" || v.AppointmentID == appointmentID) &&
			(calledBefore.IsZero() || v.CalledAt.Before(calledBefore))
	}, func(a, b models.VisitCall) bool { return a.CalledAt.Before(b.CalledAt) }), nil
}

type leaveRequests struct{ s *Store }

func (r leaveRequests) Save(_ context.Context, l *models.LeaveRequest) error {
	defer r.s.lock()()
	if l.ID == "" {
		for _, other := range r.s.data.leaveRequests {
			if other.ScheduleID == l.ScheduleID {
				return repository.ErrDuplicate
			}
		}
		l.EnsureID()
	} else {
		touch(&l.BaseModel)
	}
	r.s.data.leaveRequests[l.ID] = *l
	return nil
}

func (r leaveRequests) GetBySchedule(_ context.Context, scheduleID string) (*models.LeaveRequest, error) {
	defer r.s.lock()()
	for _, l := range r.s.data.leaveRequests {
		if l.ScheduleID == scheduleID {
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r leaveRequests) List(_ context.Context, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	defer r.s.lock()()
	return filter(r.s.data.leaveRequests, func(l models.LeaveRequest) bool {
		return status == "" || l.Status == status
	}, func(a, b models.LeaveRequest) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}

type infractions struct{ s *Store }

func (r infractions) Create(_ context.Context, i *models.Infraction) error {
	defer r.s.lock()()
	i.EnsureID()
	r.s.data.infractions[i.ID] = *i
	return nil
}

func (r infractions) Update(_ context.Context, i *models.Infraction) error {
	defer r.s.lock()()
	touch(&i.BaseModel)
	r.s.data.infractions[i.ID] = *i
	return nil
}

func (r infractions) List(_ context.Context, patientID string, typ models.InfractionType, unpenalizedOnly bool) ([]models.Infraction, error) {
	defer r.s.lock()()
	return filter(r.s.data.infractions, func(i models.Infraction) bool {
		return i.PatientID == patientID &&
			(typ == "" || i.Type == typ) &&
			(!unpenalizedOnly || !i.PenaltyApplied)
	}, func(a, b models.Infraction) bool { return a.OccurredAt.Before(b.OccurredAt) }), nil
}

type medicalRecords struct{ s *Store }

func (r medicalRecords) Create(_ context.Context, m *models.MedicalRecord) error {
	defer r.s.lock()()
	m.EnsureID()
	r.s.data.medicalRecords[m.ID] = *m
	return nil
}

func (r medicalRecords) Update(_ context.Context, m *models.MedicalRecord) error {
	defer r.s.lock()()
	touch(&m.BaseModel)
	r.s.data.medicalRecords[m.ID] = *m
	return nil
}

func (r medicalRecords) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.medicalRecords[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.data.medicalRecords, id)
	return nil
}

func (r medicalRecords) Get(_ context.Context, id string) (*models.MedicalRecord, error) {
	defer r.s.lock()()
	return get(r.s.data.medicalRecords, id)
}

func (r medicalRecords) List(_ context.Context, f repository.MedicalRecordFilter) ([]models.MedicalRecord, error) {
	defer r.s.lock()()
	return filter(r.s.data.medicalRecords, func(m models.MedicalRecord) bool {
		return (f.PatientID == "" || m.PatientID == f.PatientID) &&
			(f.DoctorID == "" || m.DoctorID == f.DoctorID)
	}, func(a, b models.MedicalRecord) bool { return a.RecordDate.After(b.RecordDate) }), nil
}

type auditLogs struct{ s *Store }

func (r auditLogs) Create(_ context.Context, l *models.AuditLog) error {
	defer r.s.lock()()
	l.EnsureID()
	r.s.data.auditLogs[l.ID] = *l
	return nil
}

func (r auditLogs) List(_ context.Context, f repository.AuditFilter) ([]models.AuditLog, int64, error) {
	defer r.s.lock()()
	rows := filter(r.s.data.auditLogs, func(l models.AuditLog) bool {
		return strings.Contains(l.UserID, f.UserIDContains) &&
			(f.Action == "" || l.Action == f.Action) &&
			(f.From.IsZero() || !l.Timestamp.Before(f.From)) &&
			(f.To.IsZero() || l.Timestamp.Before(f.To))
	}, func(a, b models.AuditLog) bool { return a.Timestamp.After(b.Timestamp) })
	return page(rows, f.Skip, f.Limit), int64(len(rows)), nil
}

type notifications struct{ s *Store }

func (r notifications) Create(_ context.Context, n *models.Notification) error {
	defer r.s.lock()()
	n.EnsureID()
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r notifications) Update(_ context.Context, n *models.Notification) error {
	defer r.s.lock()()
	touch(&n.BaseModel)
	r.s.data.notifications[n.ID] = *n
	return nil
}

func (r notifications) Get(_ context.Context, id string) (*models.Notification, error) {
	defer r.s.lock()()
	return get(r.s.data.notifications, id)
}

func (r notifications) List(_ context.Context, recipientID string, since time.Time) ([]models.Notification, error) {
	defer r.s.lock()()
	return filter(r.s.data.notifications, func(n models.Notification) bool {
		return n.RecipientID == recipientID && (since.IsZero() || n.CreatedAt.After(since))
	}, func(a, b models.Notification) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}
