package handlers

import (
	"fmt"
	"net/http"

	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves the audit trail and the dashboard.
type AdminHandler struct {
	Audit     *services.AuditService
	Dashboard *services.DashboardService
	Clock     services.Clock
	Log       *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *services.Services, clock services.Clock, log *zap.Logger) *AdminHandler {
	if clock == nil {
		clock = services.SystemClock
	}
	return &AdminHandler{Audit: svc.Audit, Dashboard: svc.Dashboard, Clock: clock, Log: log}
}

// AuditLogQuery filters the audit trail.
type AuditLogQuery struct {
	PageQuery
	UserID    string `form:"user_id"`
	Action    string `form:"action"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

func (q AuditLogQuery) query() services.AuditQuery {
	return services.AuditQuery{
		UserID:    q.UserID,
		Action:    q.Action,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Skip:      q.Skip,
		Limit:     q.Limit,
	}
}

// GetAuditLogs returns a page of audit entries, newest first.
func (h *AdminHandler) GetAuditLogs(c *gin.Context) {
	var q AuditLogQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	page, err := h.Audit.List(c.Request.Context(), q.query())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Audit logs fetched successfully", page)
}

// ExportAuditLogs downloads the matching audit entries as an xlsx workbook.
func (h *AdminHandler) ExportAuditLogs(c *gin.Context) {
	var q AuditLogQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	data, err := h.Audit.Export(c.Request.Context(), q.query())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	name := fmt.Sprintf("audit_logs_%s.xlsx", h.Clock.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetDashboard returns today's appointment counts and clinic load.
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.Dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Dashboard fetched successfully", stats)
}
