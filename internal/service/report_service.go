package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/export"
)

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportService renders attendance reports as PDF documents.
type ReportService struct {
	attendance attendanceRepository
	children   childReader
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(attendance attendanceRepository, children childReader, pdf pdfRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{attendance: attendance, children: children, pdf: pdf, logger: logger}
}

// AttendanceReport renders the attendance of one child over a date range.
func (s *ReportService) AttendanceReport(ctx context.Context, childID string, from, to time.Time) ([]byte, string, error) {
	child, err := s.children.FindByID(ctx, childID)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "child not found")
	}
	if to.Before(from) {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid date range")
	}

	records, _, err := s.attendance.List(ctx, models.AttendanceFilter{
		ChildID:  childID,
		DateFrom: &from,
		DateTo:   &to,
		PageSize: 200,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Check-in", "Check-out", "Notes"},
	}
	for _, rec := range records {
		row := map[string]string{
			"Date":      rec.Date.Format("2006-01-02"),
			"Check-in":  formatClock(rec.CheckIn),
			"Check-out": formatClock(rec.CheckOut),
			"Notes":     rec.Notes,
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	title := fmt.Sprintf("Attendance %s %s (%s to %s)", child.FirstName, child.LastName, from.Format("2006-01-02"), to.Format("2006-01-02"))
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	filename := fmt.Sprintf("attendance-%s-%s.pdf", childID, from.Format("20060102"))
	return payload, filename, nil
}

func formatClock(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Format("15:04")
}
