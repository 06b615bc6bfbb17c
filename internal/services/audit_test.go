package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"hospital-booking-server/internal/export"
	"hospital-booking-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAuditList_ResolvesUserNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root, _, err := f.svc.Accounts.SeedFirstAdmin(ctx, "admin", "admin-pass")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Accounts.Create(ctx, root.ID, models.RoleDoctor, AccountInput{Name: "House", LoginID: "house", Password: "secret1"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	require.NoError(t, f.store.AuditLogs().Create(ctx, &models.AuditLog{
		UserID:    "deleted-user",
		Action:    "profile_updated",
		Timestamp: f.clock.Now(),
	}))

	page, err := f.svc.Audit.List(ctx, AuditQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	assert.Equal(t, "Unknown user", page.Items[0].UserName)
	assert.Equal(t, "System Administrator (admin)", page.Items[1].UserName)
	assert.Equal(t, "doctor_created", page.Items[1].Action)
	assert.Equal(t, models.SystemActor, page.Items[2].UserName)

	page, err = f.svc.Audit.List(ctx, AuditQuery{Action: "doctor_created"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	page, err = f.svc.Audit.List(ctx, AuditQuery{StartDate: testToday, EndDate: testToday, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Len(t, page.Items, 1)

	page, err = f.svc.Audit.List(ctx, AuditQuery{StartDate: "2026-03-03"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = f.svc.Audit.List(ctx, AuditQuery{EndDate: "yesterday"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestAuditExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.svc.Accounts.SeedFirstAdmin(ctx, "admin", "admin-pass")
	require.NoError(t, err)

	data, err := f.svc.Audit.Export(ctx, AuditQuery{Limit: 1, Skip: 5})
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(export.AuditSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2, "paging is ignored")
	assert.Equal(t, "2026-03-02 09:00:00", rows[1][0])
	assert.Equal(t, "admin_created", rows[1][3])
}
