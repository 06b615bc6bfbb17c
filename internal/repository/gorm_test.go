package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hospital-booking-server/internal/models"
)

func setupMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestAuditLogs_List(t *testing.T) {
	store, mock := setupMockStore(t)
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM .audit_logs. WHERE user_id LIKE \? AND action = \?`).
		WithArgs("%adm%", "approve_leave").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM .audit_logs. WHERE user_id LIKE \? AND action = \? ORDER BY timestamp desc LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "action", "target_id", "target_type", "metadata", "timestamp", "created_at", "updated_at"}).
			AddRow("log-1", "admin-1", "approve_leave", "sched-1", "schedule", "{}", ts, ts, ts))

	logs, total, err := store.AuditLogs().List(context.Background(), AuditFilter{
		UserIDContains: "adm",
		Action:         "approve_leave",
		Limit:          20,
	})

	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, "sched-1", logs[0].TargetID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedules_GetForUpdate(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM .schedules. WHERE id = \? .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "date", "time_period", "status", "max_patients", "booked_patients"}).
			AddRow("sched-1", "doc-1", "2024-05-01", "morning", "available", 10, 3))

	s, err := store.Schedules().GetForUpdate(context.Background(), "sched-1")

	require.NoError(t, err)
	assert.Equal(t, "doc-1", s.DoctorID)
	assert.Equal(t, 3, s.BookedPatients)
	assert.True(t, s.HasCapacity())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUsers_GetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM .users. WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := store.Users().Get(context.Background(), "missing")

	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomDays_DeleteMissing(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM .room_days. WHERE schedule_id = \?`).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.RoomDays().Delete(context.Background(), "sched-1")

	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomDays_CreateDuplicateKeepsTransaction(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO .room_days.`).
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry 'sched-1'"})
	mock.ExpectExec(`ROLLBACK TO SAVEPOINT sp`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM .room_days. WHERE schedule_id = \? .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "current_called_sequence", "next_sequence"}).
			AddRow("room-1", "sched-1", 0, 2))
	mock.ExpectCommit()

	var room *models.RoomDay
	err := store.Transaction(context.Background(), func(tx Store) error {
		err := tx.RoomDays().Create(context.Background(), &models.RoomDay{ScheduleID: "sched-1", NextSequence: 1})
		assert.ErrorIs(t, err, ErrDuplicate)
		room, err = tx.RoomDays().GetForUpdate(context.Background(), "sched-1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, room.NextSequence)
	require.NoError(t, mock.ExpectationsWereMet())
}
