package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/malekaidoudi/creche-sub003/internal/models"
)

func TestAttendanceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	checkIn := time.Now().UTC()
	att := &models.Attendance{ChildID: "child-1", Date: checkIn.Truncate(24 * time.Hour), CheckIn: &checkIn, RecordedBy: "staff-1"}
	require.NoError(t, repo.Create(context.Background(), att))
	require.NotEmpty(t, att.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySetCheckOutGuard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance SET check_out")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetCheckOut(context.Background(), "att-1", time.Now(), ""))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance SET check_out")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.SetCheckOut(context.Background(), "att-1", time.Now(), "")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "child_id", "date", "check_in", "check_out", "notes", "recorded_by", "created_at", "updated_at", "child_first_name", "child_last_name"}).
		AddRow("att-1", "child-1", now, now, nil, "", "staff-1", now, now, "Yasmine", "Ben Salah")

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance a JOIN children c")).
		WithArgs("child-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance a")).
		WithArgs("child-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{ChildID: "child-1"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, records, 1)
	require.Equal(t, "Yasmine", records[0].ChildFirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}
