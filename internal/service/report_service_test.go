package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
	"github.com/malekaidoudi/creche-sub003/pkg/export"
)

type pdfRendererStub struct {
	lastData  export.Dataset
	lastTitle string
}

func (p *pdfRendererStub) Render(data export.Dataset, title string) ([]byte, error) {
	p.lastData = data
	p.lastTitle = title
	return []byte("%PDF-1.4 stub"), nil
}

func TestReportServiceAttendanceReport(t *testing.T) {
	repo := newAttendanceRepoStub()
	checkIn := time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC)
	checkOut := time.Date(2026, 3, 2, 16, 45, 0, 0, time.UTC)
	repo.records["a1"] = &models.Attendance{
		ID:       "a1",
		ChildID:  "child-1",
		Date:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		CheckIn:  &checkIn,
		CheckOut: &checkOut,
		Notes:    "regular day",
	}
	repo.records["a2"] = &models.Attendance{
		ID:      "a2",
		ChildID: "child-1",
		Date:    time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		CheckIn: &checkIn,
	}
	renderer := &pdfRendererStub{}
	svc := NewReportService(repo, knownChild("child-1"), renderer, nil)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	payload, filename, err := svc.AttendanceReport(context.Background(), "child-1", from, to)
	require.NoError(t, err)
	require.NotEmpty(t, payload)
	require.Equal(t, "attendance-child-1-20260301.pdf", filename)
	require.Contains(t, renderer.lastTitle, "Yasmine Ben Salah")
	require.Len(t, renderer.lastData.Rows, 2)
	require.Equal(t, []string{"Date", "Check-in", "Check-out", "Notes"}, renderer.lastData.Headers)
}

func TestReportServiceAttendanceReportUnknownChild(t *testing.T) {
	svc := NewReportService(newAttendanceRepoStub(), &childReaderStub{children: map[string]*models.Child{}}, &pdfRendererStub{}, nil)

	_, _, err := svc.AttendanceReport(context.Background(), "ghost", time.Now(), time.Now())
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReportServiceAttendanceReportInvalidRange(t *testing.T) {
	svc := NewReportService(newAttendanceRepoStub(), knownChild("child-1"), &pdfRendererStub{}, nil)

	from := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, _, err := svc.AttendanceReport(context.Background(), "child-1", from, to)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
