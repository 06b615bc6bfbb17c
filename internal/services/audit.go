package services

import (
	"context"
	"time"

	"hospital-booking-server/internal/export"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
)

// exportLimit caps the rows written to one audit workbook.
const exportLimit = 10000

// AuditQuery filters the audit log. Dates are inclusive civil dates.
type AuditQuery struct {
	UserID    string
	Action    string
	StartDate string
	EndDate   string
	Skip      int
	Limit     int
}

// AuditPage is one page of audit entries and the total match count.
type AuditPage struct {
	Items []models.AuditLogView `json:"items"`
	Total int64                 `json:"total"`
}

// AuditService reads the audit trail.
type AuditService struct {
	deps *Deps
}

func (s *AuditService) filter(q AuditQuery) (repository.AuditFilter, error) {
	f := repository.AuditFilter{
		UserIDContains: q.UserID,
		Action:         q.Action,
		Skip:           q.Skip,
		Limit:          q.Limit,
	}
	if q.StartDate != "" {
		from, err := time.ParseInLocation(models.DateLayout, q.StartDate, s.deps.Clinic.Location)
		if err != nil {
			return f, invalid("Invalid start_date, expected YYYY-MM-DD")
		}
		f.From = from
	}
	if q.EndDate != "" {
		to, err := time.ParseInLocation(models.DateLayout, q.EndDate, s.deps.Clinic.Location)
		if err != nil {
			return f, invalid("Invalid end_date, expected YYYY-MM-DD")
		}
		f.To = to.AddDate(0, 0, 1)
	}
	return f, nil
}

// List returns a page of audit entries, newest first.
func (s *AuditService) List(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	f, err := s.filter(q)
	if err != nil {
		return nil, err
	}
	logs, total, err := s.deps.Store.AuditLogs().List(ctx, f)
	if err != nil {
		return nil, err
	}
	items, err := s.views(ctx, logs)
	if err != nil {
		return nil, err
	}
	return &AuditPage{Items: items, Total: total}, nil
}

// Export renders the entries matching q as an xlsx workbook. Paging is ignored.
func (s *AuditService) Export(ctx context.Context, q AuditQuery) ([]byte, error) {
	q.Skip, q.Limit = 0, exportLimit
	page, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return export.AuditWorkbook(page.Items, s.deps.Clinic.Location)
}

func (s *AuditService) views(ctx context.Context, logs []models.AuditLog) ([]models.AuditLogView, error) {
	users, err := usersByID(ctx, s.deps.Store, func(yield func(string)) {
		for _, l := range logs {
			if l.UserID != models.SystemActor {
				yield(l.UserID)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditLogView, 0, len(logs))
	for _, l := range logs {
		v := models.AuditLogView{AuditLog: l, UserName: "Unknown user"}
		if l.UserID == models.SystemActor {
			v.UserName = models.SystemActor
		} else if u := users[l.UserID]; u != nil {
			v.UserName = u.DisplayName()
		}
		out = append(out, v)
	}
	return out, nil
}
