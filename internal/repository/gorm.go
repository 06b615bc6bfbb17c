package repository

import (
	"context"
	"errors"
	"time"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the SQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository                   { return &gormUsers{db: s.db} }
func (s *GormStore) RefreshTokens() RefreshTokenRepository   { return &gormRefreshTokens{db: s.db} }
func (s *GormStore) Schedules() ScheduleRepository           { return &gormSchedules{db: s.db} }
func (s *GormStore) Appointments() AppointmentRepository     { return &gormAppointments{db: s.db} }
func (s *GormStore) Checkins() CheckinRepository             { return &gormCheckins{db: s.db} }
func (s *GormStore) RoomDays() RoomDayRepository             { return &gormRoomDays{db: s.db} }
func (s *GormStore) VisitCalls() VisitCallRepository         { return &gormVisitCalls{db: s.db} }
func (s *GormStore) LeaveRequests() LeaveRequestRepository   { return &gormLeaveRequests{db: s.db} }
func (s *GormStore) Infractions() InfractionRepository       { return &gormInfractions{db: s.db} }
func (s *GormStore) MedicalRecords() MedicalRecordRepository { return &gormMedicalRecords{db: s.db} }
func (s *GormStore) AuditLogs() AuditLogRepository           { return &gormAuditLogs{db: s.db} }
func (s *GormStore) Notifications() NotificationRepository   { return &gormNotifications{db: s.db} }

// Transaction implements Store.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Ping implements Store.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func deleted(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func paginate(q *gorm.DB, skip, limit int) *gorm.DB {
	if skip > 0 {
		q = q.Offset(skip)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

type gormUsers struct{ db *gorm.DB }

func (r *gormUsers) Create(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *gormUsers) Update(ctx context.Context, u *models.User) error {
	return translate(r.db.WithContext(ctx).Save(u).Error)
}

func (r *gormUsers) Delete(ctx context.Context, id string) error {
	return deleted(r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id))
}

func (r *gormUsers) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *gormUsers) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Where("login_id = ? OR email = ?", login, login).
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *gormUsers) FindBy(ctx context.Context, field UserField, value string) (*models.User, error) {
	var u models.User
	var err error
	switch field {
	case UserEmail, UserLoginID, UserCardNumber:
		err = r.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: string(field)}, Value: value}).First(&u).Error
	default:
		return nil, errors.New("unsupported user lookup field: " + string(field))
	}
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *gormUsers) List(ctx context.Context, f UserFilter) ([]models.User, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Specialty != "" {
		q = q.Where("specialty = ?", f.Specialty)
	}
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	var users []models.User
	err := paginate(q.Order("name asc"), f.Skip, f.Limit).Find(&users).Error
	return users, err
}

type gormRefreshTokens struct{ db *gorm.DB }

func (r *gormRefreshTokens) Create(ctx context.Context, t *models.RefreshToken) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *gormRefreshTokens) Update(ctx context.Context, t *models.RefreshToken) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

func (r *gormRefreshTokens) FindUsable(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	q := r.db.WithContext(ctx).Where("token = ? AND is_revoked = ? AND expires_at > ?", token, false, now)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var t models.RefreshToken
	if err := q.First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

type gormSchedules struct{ db *gorm.DB }

func (r *gormSchedules) Create(ctx context.Context, s *models.Schedule) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(s).Error)
}

func (r *gormSchedules) Update(ctx context.Context, s *models.Schedule) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(s).Error)
}

func (r *gormSchedules) Delete(ctx context.Context, id string) error {
	return deleted(r.db.WithContext(ctx).Delete(&models.Schedule{}, "id = ?", id))
}

func (r *gormSchedules) Get(ctx context.Context, id string) (*models.Schedule, error) {
	var s models.Schedule
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormSchedules) GetForUpdate(ctx context.Context, id string) (*models.Schedule, error) {
	var s models.Schedule
	if err := r.db.WithContext(ctx).Clauses(forUpdate).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormSchedules) FindSlot(ctx context.Context, doctorID, date string, period lifecycle.TimePeriod, lock bool) (*models.Schedule, error) {
	q := r.db.WithContext(ctx)
	if lock {
		q = q.Clauses(forUpdate)
	}
	var s models.Schedule
	err := q.Where("doctor_id = ? AND date = ? AND time_period = ?", doctorID, date, period).First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *gormSchedules) List(ctx context.Context, f ScheduleFilter) ([]models.Schedule, error) {
	q := r.db.WithContext(ctx).Model(&models.Schedule{})
	if f.Specialty != "" {
		q = q.Joins("JOIN users ON users.id = schedules.doctor_id").Where("users.specialty = ?", f.Specialty)
	}
	if len(f.DoctorIDs) > 0 {
		q = q.Where("schedules.doctor_id IN ?", f.DoctorIDs)
	}
	if f.RecurringGroupID != "" {
		q = q.Where("schedules.recurring_group_id = ?", f.RecurringGroupID)
	}
	if f.Date != "" {
		q = q.Where("schedules.date = ?", f.Date)
	}
	if f.DateFrom != "" {
		q = q.Where("schedules.date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		q = q.Where("schedules.date <= ?", f.DateTo)
	}
	if f.TimePeriod != "" {
		q = q.Where("schedules.time_period = ?", f.TimePeriod)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("schedules.status IN ?", f.Statuses)
	}
	var schedules []models.Schedule
	err := paginate(q.Order("schedules.date asc, schedules.time_period asc"), f.Skip, f.Limit).
		Select("schedules.*").Find(&schedules).Error
	return schedules, err
}

type gormAppointments struct{ db *gorm.DB }

func (r *gormAppointments) Create(ctx context.Context, a *models.Appointment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error)
}

func (r *gormAppointments) Update(ctx context.Context, a *models.Appointment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(a).Error)
}

func (r *gormAppointments) Get(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *gormAppointments) List(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	q := r.db.WithContext(ctx).Model(&models.Appointment{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.ScheduleID != "" {
		q = q.Where("schedule_id = ?", f.ScheduleID)
	}
	if f.Date != "" {
		q = q.Where("date = ?", f.Date)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var appointments []models.Appointment
	err := q.Order("date asc, created_at asc").Find(&appointments).Error
	return appointments, err
}

type gormCheckins struct{ db *gorm.DB }

func (r *gormCheckins) Create(ctx context.Context, c *models.Checkin) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *gormCheckins) Update(ctx context.Context, c *models.Checkin) error {
	return translate(r.db.WithContext(ctx).Save(c).Error)
}

func (r *gormCheckins) Get(ctx context.Context, id string) (*models.Checkin, error) {
	var c models.Checkin
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCheckins) GetByAppointment(ctx context.Context, appointmentID string) (*models.Checkin, error) {
	var c models.Checkin
	if err := r.db.WithContext(ctx).First(&c, "appointment_id = ?", appointmentID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCheckins) FindBySequence(ctx context.Context, scheduleID string, seq int) (*models.Checkin, error) {
	var c models.Checkin
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND ticket_sequence = ?", scheduleID, seq).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *gormCheckins) List(ctx context.Context, f CheckinFilter) ([]models.Checkin, error) {
	q := r.db.WithContext(ctx).Model(&models.Checkin{})
	if f.ScheduleID != "" {
		q = q.Where("schedule_id = ?", f.ScheduleID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.AfterSequence > 0 {
		q = q.Where("ticket_sequence > ?", f.AfterSequence)
	}
	var checkins []models.Checkin
	err := q.Order("ticket_sequence asc").Find(&checkins).Error
	return checkins, err
}

type gormRoomDays struct{ db *gorm.DB }

// Create runs in a nested transaction so a duplicate key rolls back to a
// savepoint and the outer transaction stays usable on postgres.
func (r *gormRoomDays) Create(ctx context.Context, d *models.RoomDay) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(d).Error
	}))
}

func (r *gormRoomDays) Update(ctx context.Context, d *models.RoomDay) error {
	return translate(r.db.WithContext(ctx).Save(d).Error)
}

func (r *gormRoomDays) Delete(ctx context.Context, scheduleID string) error {
	return deleted(r.db.WithContext(ctx).Delete(&models.RoomDay{}, "schedule_id = ?", scheduleID))
}

func (r *gormRoomDays) Get(ctx context.Context, scheduleID string) (*models.RoomDay, error) {
	var d models.RoomDay
	if err := r.db.WithContext(ctx).First(&d, "schedule_id = ?", scheduleID).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *gormRoomDays) GetForUpdate(ctx context.Context, scheduleID string) (*models.RoomDay, error) {
	var d models.RoomDay
	if err := r.db.WithContext(ctx).Clauses(forUpdate).First(&d, "schedule_id = ?", scheduleID).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

type gormVisitCalls struct{ db *gorm.DB }

func (r *gormVisitCalls) Create(ctx context.Context, v *models.VisitCall) error {
	return translate(r.db.WithContext(ctx).Create(v).Error)
}

func (r *gormVisitCalls) Update(ctx context.Context, v *models.VisitCall) error {
	return translate(r.db.WithContext(ctx).Save(v).Error)
}

func (r *gormVisitCalls) ListActive(ctx context.Context, appointmentID string, calledBefore time.Time) ([]models.VisitCall, error) {
	q := r.db.WithContext(ctx).Where("call_status = ?", models.CallActive)
	if appointmentID != "" {
		q = q.Where("appointment_id = ?", appointmentID)
	}
	if !calledBefore.IsZero() {
		q = q.Where("called_at < ?", calledBefore)
	}
	var calls []models.VisitCall
	err := q.Order("called_at asc").Find(&calls).Error
	return calls, err
}

type gormLeaveRequests struct{ db *gorm.DB }

func (r *gormLeaveRequests) Save(ctx context.Context, l *models.LeaveRequest) error {
	if l.ID == "" {
		return translate(r.db.WithContext(ctx).Create(l).Error)
	}
	return translate(r.db.WithContext(ctx).Save(l).Error)
}

func (r *gormLeaveRequests) GetBySchedule(ctx context.Context, scheduleID string) (*models.LeaveRequest, error) {
	var l models.LeaveRequest
	if err := r.db.WithContext(ctx).First(&l, "schedule_id = ?", scheduleID).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *gormLeaveRequests) List(ctx context.Context, status models.LeaveStatus) ([]models.LeaveRequest, error) {
	q := r.db.WithContext(ctx).Model(&models.LeaveRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var requests []models.LeaveRequest
	err := q.Order("created_at asc").Find(&requests).Error
	return requests, err
}

type gormInfractions struct{ db *gorm.DB }

func (r *gormInfractions) Create(ctx context.Context, i *models.Infraction) error {
	return translate(r.db.WithContext(ctx).Create(i).Error)
}

func (r *gormInfractions) Update(ctx context.Context, i *models.Infraction) error {
	return translate(r.db.WithContext(ctx).Save(i).Error)
}

func (r *gormInfractions) List(ctx context.Context, patientID string, typ models.InfractionType, unpenalizedOnly bool) ([]models.Infraction, error) {
	q := r.db.WithContext(ctx).Where("patient_id = ?", patientID)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if unpenalizedOnly {
		q = q.Where("penalty_applied = ?", false)
	}
	var infractions []models.Infraction
	err := q.Order("occurred_at asc").Find(&infractions).Error
	return infractions, err
}

type gormMedicalRecords struct{ db *gorm.DB }

func (r *gormMedicalRecords) Create(ctx context.Context, m *models.MedicalRecord) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *gormMedicalRecords) Update(ctx context.Context, m *models.MedicalRecord) error {
	return translate(r.db.WithContext(ctx).Save(m).Error)
}

func (r *gormMedicalRecords) Delete(ctx context.Context, id string) error {
	return deleted(r.db.WithContext(ctx).Delete(&models.MedicalRecord{}, "id = ?", id))
}

func (r *gormMedicalRecords) Get(ctx context.Context, id string) (*models.MedicalRecord, error) {
	var m models.MedicalRecord
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *gormMedicalRecords) List(ctx context.Context, f MedicalRecordFilter) ([]models.MedicalRecord, error) {
	q := r.db.WithContext(ctx).Model(&models.MedicalRecord{})
	if f.PatientID != "" {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	var records []models.MedicalRecord
	err := q.Order("record_date desc").Find(&records).Error
	return records, err
}

type gormAuditLogs struct{ db *gorm.DB }

func (r *gormAuditLogs) Create(ctx context.Context, l *models.AuditLog) error {
	return translate(r.db.WithContext(ctx).Create(l).Error)
}

func (r *gormAuditLogs) List(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.UserIDContains != "" {
		q = q.Where("user_id LIKE ?", "%"+f.UserIDContains+"%")
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if !f.From.IsZero() {
		q = q.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("timestamp < ?", f.To)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []models.AuditLog
	err := paginate(q.Order("timestamp desc"), f.Skip, f.Limit).Find(&logs).Error
	return logs, total, err
}

type gormNotifications struct{ db *gorm.DB }

func (r *gormNotifications) Create(ctx context.Context, n *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *gormNotifications) Update(ctx context.Context, n *models.Notification) error {
	return translate(r.db.WithContext(ctx).Save(n).Error)
}

func (r *gormNotifications) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *gormNotifications) List(ctx context.Context, recipientID string, since time.Time) ([]models.Notification, error) {
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if !since.IsZero() {
		q = q.Where("created_at > ?", since)
	}
	var notifications []models.Notification
	err := q.Order("created_at desc").Find(&notifications).Error
	return notifications, err
}
