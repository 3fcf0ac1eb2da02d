package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type attendanceRepoStub struct {
	records map[string]*models.Attendance
}

func newAttendanceRepoStub() *attendanceRepoStub {
	return &attendanceRepoStub{records: make(map[string]*models.Attendance)}
}

func (m *attendanceRepoStub) FindByChildAndDate(ctx context.Context, childID string, date time.Time) (*models.Attendance, error) {
	for _, r := range m.records {
		if r.ChildID == childID && r.Date.Equal(date) {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *attendanceRepoStub) Create(ctx context.Context, att *models.Attendance) error {
	if att.ID == "" {
		att.ID = fmt.Sprintf("att-stub-%d", len(m.records)+1)
	}
	m.records[att.ID] = att
	return nil
}

func (m *attendanceRepoStub) SetCheckOut(ctx context.Context, id string, checkOut time.Time, notes string) error {
	r, ok := m.records[id]
	if !ok || r.CheckOut != nil {
		return sql.ErrNoRows
	}
	r.CheckOut = &checkOut
	if notes != "" {
		r.Notes = notes
	}
	return nil
}

func (m *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	var result []models.AttendanceDetail
	for _, r := range m.records {
		if filter.ChildID != "" && r.ChildID != filter.ChildID {
			continue
		}
		result = append(result, models.AttendanceDetail{Attendance: *r})
	}
	return result, len(result), nil
}

func (m *attendanceRepoStub) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	summary := &models.DailySummary{Date: date}
	for _, r := range m.records {
		if !r.Date.Equal(date) {
			continue
		}
		summary.Present++
		if r.CheckOut != nil {
			summary.CheckedOut++
		}
	}
	return summary, nil
}

type childReaderStub struct {
	children map[string]*models.Child
}

func (m *childReaderStub) FindByID(ctx context.Context, id string) (*models.Child, error) {
	if c, ok := m.children[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newTestAttendanceService(repo *attendanceRepoStub, children *childReaderStub) *AttendanceService {
	return NewAttendanceService(repo, children, nil, nil)
}

func knownChild(id string) *childReaderStub {
	return &childReaderStub{children: map[string]*models.Child{
		id: {ID: id, FirstName: "Yasmine", LastName: "Ben Salah"},
	}}
}

func TestAttendanceServiceCheckIn(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, knownChild("child-1"))

	att, err := svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-1", Notes: "arrived with dad"})
	require.NoError(t, err)
	require.NotNil(t, att.CheckIn)
	require.Nil(t, att.CheckOut)
	require.Equal(t, "staff-1", att.RecordedBy)
}

func TestAttendanceServiceCheckInTwiceConflicts(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, knownChild("child-1"))

	_, err := svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-1"})
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-1"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceCheckInUnknownChild(t *testing.T) {
	svc := newTestAttendanceService(newAttendanceRepoStub(), &childReaderStub{children: map[string]*models.Child{}})

	_, err := svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "ghost"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceServiceCheckOut(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, knownChild("child-1"))

	_, err := svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-1"})
	require.NoError(t, err)

	att, err := svc.CheckOut(context.Background(), CheckOutRequest{ChildID: "child-1", Notes: "picked up by mom"})
	require.NoError(t, err)
	require.NotNil(t, att.CheckOut)
	require.Equal(t, "picked up by mom", att.Notes)

	_, err = svc.CheckOut(context.Background(), CheckOutRequest{ChildID: "child-1"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceCheckOutWithoutCheckIn(t *testing.T) {
	svc := newTestAttendanceService(newAttendanceRepoStub(), knownChild("child-1"))

	_, err := svc.CheckOut(context.Background(), CheckOutRequest{ChildID: "child-1"})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceServiceDailySummary(t *testing.T) {
	repo := newAttendanceRepoStub()
	children := &childReaderStub{children: map[string]*models.Child{
		"child-1": {ID: "child-1"},
		"child-2": {ID: "child-2"},
	}}
	svc := newTestAttendanceService(repo, children)

	_, err := svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-1"})
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), "staff-1", CheckInRequest{ChildID: "child-2"})
	require.NoError(t, err)
	_, err = svc.CheckOut(context.Background(), CheckOutRequest{ChildID: "child-1"})
	require.NoError(t, err)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	summary, err := svc.DailySummary(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Present)
	require.Equal(t, 1, summary.CheckedOut)
}
