package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"hrms-service/models"
	"hrms-service/store"

	"github.com/xuri/excelize/v2"
)

const (
	reportSheet     = "Attendance"
	deletedUserName = "Deleted User"
	reportTimeFmt   = "2006-01-02 15:04"
)

var reportColumns = []interface{}{
	"Date", "Employee", "Email", "Department", "Position", "Check In", "Check Out", "Hours Worked",
}

type ReportFilter struct {
	UserID string
	Start  *models.DateOnly
	End    *models.DateOnly
}

// Reports is the administrator's read-only view across all users.
type Reports struct {
	records store.AttendanceRepository
}

func NewReports(records store.AttendanceRepository) *Reports {
	return &Reports{records: records}
}

// Report returns matching records newest first, each joined to its user's
// profile. Records of deleted users carry an empty profile.
func (r *Reports) Report(ctx context.Context, filter ReportFilter) ([]models.AttendanceRecord, error) {
	return r.records.List(ctx, store.AttendanceFilter{
		UserID:     filter.UserID,
		Start:      filter.Start,
		End:        filter.End,
		ExpandUser: true,
	})
}

// Export writes the report as an XLSX workbook.
func (r *Reports) Export(ctx context.Context, filter ReportFilter, w io.Writer) error {
	records, err := r.Report(ctx, filter)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(reportSheet, "A1", &reportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(reportSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetColWidth(reportSheet, "A", "H", 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := reportRow(record)
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}

func reportRow(record models.AttendanceRecord) []interface{} {
	name, email, department, position := deletedUserName, "", "", ""
	if p := record.User.Profile; p != nil {
		name, email, department, position = p.Name, p.Email, p.Department, p.Position
	}
	return []interface{}{
		record.Date.String(),
		name,
		email,
		department,
		position,
		formatStamp(record.CheckIn),
		formatStamp(record.CheckOut),
		FormatHours(record),
	}
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(reportTimeFmt)
}

// FormatHours renders worked time as "Xh Ym", or "-" while the day is open.
func FormatHours(record models.AttendanceRecord) string {
	if !record.CheckedIn() || !record.CheckedOut() {
		return "-"
	}
	minutes := int(record.Worked() / time.Minute)
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
