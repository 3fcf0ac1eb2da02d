package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/malekaidoudi/creche-sub003/internal/models"
	appErrors "github.com/malekaidoudi/creche-sub003/pkg/errors"
)

type attendanceRepository interface {
	FindByChildAndDate(ctx context.Context, childID string, date time.Time) (*models.Attendance, error)
	Create(ctx context.Context, att *models.Attendance) error
	SetCheckOut(ctx context.Context, id string, checkOut time.Time, notes string) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error)
}

type childReader interface {
	FindByID(ctx context.Context, id string) (*models.Child, error)
}

// CheckInRequest records a child arriving.
type CheckInRequest struct {
	ChildID string `json:"child_id" validate:"required"`
	Notes   string `json:"notes"`
}

// CheckOutRequest records a child leaving.
type CheckOutRequest struct {
	ChildID string `json:"child_id" validate:"required"`
	Notes   string `json:"notes"`
}

// AttendanceService manages daily check-in and check-out records.
type AttendanceService struct {
	repo      attendanceRepository
	children  childReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, children childReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, children: children, validator: validate, logger: logger}
}

// CheckIn records the arrival of a child for today. A second check-in on
// the same day is a conflict.
func (s *AttendanceService) CheckIn(ctx context.Context, recordedBy string, req CheckInRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	if _, err := s.children.FindByID(ctx, req.ChildID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	if _, err := s.repo.FindByChildAndDate(ctx, req.ChildID, today); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "child already checked in today")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}

	att := &models.Attendance{
		ChildID:    req.ChildID,
		Date:       today,
		CheckIn:    &now,
		Notes:      req.Notes,
		RecordedBy: recordedBy,
	}
	if err := s.repo.Create(ctx, att); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
	}
	return att, nil
}

// CheckOut records the departure of a child for today.
func (s *AttendanceService) CheckOut(ctx context.Context, req CheckOutRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}
	now := time.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	att, err := s.repo.FindByChildAndDate(ctx, req.ChildID, today)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no check-in recorded for today")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if err := s.repo.SetCheckOut(ctx, att.ID, now, req.Notes); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "child already checked out")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
	}
	att.CheckOut = &now
	if req.Notes != "" {
		att.Notes = req.Notes
	}
	return att, nil
}

// List returns attendance records for the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// DailySummary aggregates today's presence numbers.
func (s *AttendanceService) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	summary, err := s.repo.DailySummary(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute daily summary")
	}
	return summary, nil
}
