package migration

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRunnerUnderTest(t *testing.T) (*Runner, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	srcDB, srcMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { srcDB.Close() })

	dstDB, dstMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { dstDB.Close() })

	r := &Runner{
		exporter:   NewExporter(sqlx.NewDb(srcDB, "mysql")),
		importer:   NewImporter(sqlx.NewDb(dstDB, "postgres")),
		converters: Converters(),
		logger:     zap.NewNop(),
	}
	return r, srcMock, dstMock
}

func TestLinkChildEnrollmentsBackfillsResolvedLinks(t *testing.T) {
	r, _, dstMock := newRunnerUnderTest(t)

	ids := NewIDMap()
	ids.Put("enrollments", "44", "enr-uuid-44")
	ids.DeferChildEnrollment("child-uuid-12", "12", "44")
	ids.DeferChildEnrollment("child-uuid-13", "13", "99")

	dstMock.ExpectExec(regexp.QuoteMeta("UPDATE children SET enrollment_id = $1 WHERE id = $2")).
		WithArgs("enr-uuid-44", "child-uuid-12").
		WillReturnResult(sqlmock.NewResult(0, 1))

	report := &Report{Tables: []TableResult{{Table: "children", Exported: 2, Imported: 2}}}
	r.linkChildEnrollments(context.Background(), ids, report)

	// The unresolvable link is a tolerated row error on the children table.
	require.Len(t, report.Tables[0].RowErrors, 1)
	require.Equal(t, "13", report.Tables[0].RowErrors[0].LegacyID)
	require.Contains(t, report.Tables[0].RowErrors[0].Reason, "unknown enrollment_id 99")
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestValidateFlagsCountMismatch(t *testing.T) {
	r, srcMock, dstMock := newRunnerUnderTest(t)

	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	dstMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	report := &Report{Tables: []TableResult{{Table: "users", Exported: 3, Imported: 2}}}
	require.NoError(t, r.validate(context.Background(), report))

	require.Equal(t, 3, report.Tables[0].SourceCount)
	require.Equal(t, 2, report.Tables[0].TargetCount)
	require.False(t, report.Tables[0].CountMatch)

	require.NoError(t, srcMock.ExpectationsWereMet())
	require.NoError(t, dstMock.ExpectationsWereMet())
}

func TestValidateAcceptsMatchingCounts(t *testing.T) {
	r, srcMock, dstMock := newRunnerUnderTest(t)

	srcMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM settings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	dstMock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM settings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	report := &Report{Tables: []TableResult{{Table: "settings", Exported: 5, Imported: 5}}}
	require.NoError(t, r.validate(context.Background(), report))
	require.True(t, report.Tables[0].CountMatch)
}
