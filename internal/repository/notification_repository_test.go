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

func TestNotificationRepositoryCreateAndList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	n := &models.Notification{UserID: "parent-1", Title: "Inscription approuvée", Type: models.NotificationEnrollmentApproved}
	require.NoError(t, repo.Create(context.Background(), n))
	require.NotEmpty(t, n.ID)

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "body", "type", "read_at", "created_at"}).
		AddRow(n.ID, "parent-1", n.Title, "", string(n.Type), nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications WHERE user_id = $1")).
		WithArgs("parent-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM notifications")).
		WithArgs("parent-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.NotificationFilter{UserID: "parent-1"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadOwnershipGuard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkRead(context.Background(), "n-1", "parent-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET read_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkRead(context.Background(), "n-1", "other-user")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
