package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

// AttendanceRepository handles persistence of daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByChildAndDate returns the attendance row for a child on a given day.
func (r *AttendanceRepository) FindByChildAndDate(ctx context.Context, childID string, date time.Time) (*models.Attendance, error) {
	const query = `SELECT id, child_id, date, check_in, check_out, notes, recorded_by, created_at, updated_at
        FROM attendance WHERE child_id = $1 AND date = $2 LIMIT 1`
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, childID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &att, nil
}

// Create inserts a new attendance record (the check-in).
func (r *AttendanceRepository) Create(ctx context.Context, att *models.Attendance) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if att.CreatedAt.IsZero() {
		att.CreatedAt = now
	}
	att.UpdatedAt = now
	const query = `INSERT INTO attendance (id, child_id, date, check_in, check_out, notes, recorded_by, created_at, updated_at)
        VALUES (:id, :child_id, :date, :check_in, :check_out, :notes, :recorded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// SetCheckOut records the check-out time on an open attendance row. Zero
// affected rows means the row was missing or already checked out.
func (r *AttendanceRepository) SetCheckOut(ctx context.Context, id string, checkOut time.Time, notes string) error {
	const query = `UPDATE attendance SET check_out = $2, notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END, updated_at = $4
        WHERE id = $1 AND check_out IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, checkOut, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set check out: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set check out rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns attendance records joined with child names.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendance a JOIN children c ON c.id = a.child_id`
	var conditions []string
	var args []interface{}

	if filter.ChildID != "" {
		conditions = append(conditions, fmt.Sprintf("a.child_id = $%d", len(args)+1))
		args = append(args, filter.ChildID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.child_id, a.date, a.check_in, a.check_out, a.notes, a.recorded_by, a.created_at, a.updated_at,
        c.first_name AS child_first_name, c.last_name AS child_last_name
        %s ORDER BY a.date DESC, a.check_in DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// DailySummary aggregates presence counts for one day.
func (r *AttendanceRepository) DailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	const query = `SELECT $1::date AS date,
        COUNT(*) FILTER (WHERE check_in IS NOT NULL) AS present,
        COUNT(*) FILTER (WHERE check_out IS NOT NULL) AS checked_out
        FROM attendance WHERE date = $1`
	var summary models.DailySummary
	if err := r.db.GetContext(ctx, &summary, query, date); err != nil {
		return nil, fmt.Errorf("daily attendance summary: %w", err)
	}
	return &summary, nil
}
