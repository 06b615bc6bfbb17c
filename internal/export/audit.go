// Package export renders admin reports as Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"hospital-booking-server/internal/models"

	"github.com/xuri/excelize/v2"
)

// AuditSheet is the worksheet name of the audit export.
const AuditSheet = "Audit Logs"

// AuditHeader is the header row of the audit export.
var AuditHeader = []string{
	"Timestamp",
	"User",
	"User ID",
	"Action",
	"Target Type",
	"Target ID",
	"Details",
}

// AuditWorkbook renders audit log rows as an xlsx file. Timestamps are
// written in loc.
func AuditWorkbook(logs []models.AuditLogView, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AuditSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range AuditHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(AuditSheet, cell, h); err != nil {
			return nil, err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(AuditHeader), 1)
	if err := f.SetCellStyle(AuditSheet, "A1", last, headerStyle); err != nil {
		return nil, err
	}

	for r, l := range logs {
		row := []interface{}{
			l.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
			l.UserName,
			l.UserID,
			l.Action,
			l.TargetType,
			l.TargetID,
			l.Metadata,
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(AuditSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}

	_ = f.SetColWidth(AuditSheet, "A", "A", 20)
	_ = f.SetColWidth(AuditSheet, "B", "B", 28)
	_ = f.SetColWidth(AuditSheet, "C", "C", 38)
	_ = f.SetColWidth(AuditSheet, "D", "F", 22)
	_ = f.SetColWidth(AuditSheet, "G", "G", 60)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
