package migration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// RowError captures one tolerated row-level failure. LegacyID points at the
// source row so operators can find it in the MySQL snapshot.
type RowError struct {
	Table    string `json:"table"`
	LegacyID string `json:"legacy_id"`
	Reason   string `json:"reason"`
}

// PreparedRow pairs a converted destination row with the legacy id it was
// built from.
type PreparedRow struct {
	LegacyID string
	Row      Row
}

// Importer writes converted rows into the destination PostgreSQL store.
type Importer struct {
	db *sqlx.DB
}

// NewImporter constructs an Importer.
func NewImporter(db *sqlx.DB) *Importer {
	return &Importer{db: db}
}

// TruncateAll clears every destination table in one transaction before the
// import starts. Tables are truncated children-first so a CASCADE cannot wipe
// rows a later table import already wrote.
func (i *Importer) TruncateAll(ctx context.Context, tables []string) (err error) {
	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin truncate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for idx := len(tables) - 1; idx >= 0; idx-- {
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", tables[idx])); err != nil {
			return fmt.Errorf("truncate %s: %w", tables[idx], err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit truncate: %w", err)
	}
	return nil
}

// ImportTable inserts the converted rows in one transaction. Each row insert
// runs under a savepoint so one bad row is recorded and skipped without
// aborting the table. A failure outside a savepoint rolls the whole table
// back and is fatal to the run.
func (i *Importer) ImportTable(ctx context.Context, table string, rows []PreparedRow) (inserted int, rowErrors []RowError, err error) {
	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin %s import: %w", table, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for idx, row := range rows {
		query, args := buildInsert(table, row.Row)
		savepoint := fmt.Sprintf("row_%d", idx)
		if _, err = tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
			return 0, nil, fmt.Errorf("savepoint %s: %w", table, err)
		}
		if _, insertErr := tx.ExecContext(ctx, query, args...); insertErr != nil {
			rowErrors = append(rowErrors, RowError{
				Table:    table,
				LegacyID: row.LegacyID,
				Reason:   insertErr.Error(),
			})
			if _, err = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); err != nil {
				return 0, nil, fmt.Errorf("rollback savepoint %s: %w", table, err)
			}
			continue
		}
		if _, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return 0, nil, fmt.Errorf("release savepoint %s: %w", table, err)
		}
		inserted++
	}

	if err = tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit %s import: %w", table, err)
	}
	return inserted, rowErrors, nil
}

// LinkChildEnrollment backfills a child's originating enrollment once the
// enrollments table has migrated.
func (i *Importer) LinkChildEnrollment(ctx context.Context, childID, enrollmentID string) error {
	if _, err := i.db.ExecContext(ctx, "UPDATE children SET enrollment_id = $1 WHERE id = $2", enrollmentID, childID); err != nil {
		return fmt.Errorf("link child %s enrollment: %w", childID, err)
	}
	return nil
}

// Count returns the destination row count for validation.
func (i *Importer) Count(ctx context.Context, table string) (int, error) {
	var count int
	if err := i.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// buildInsert renders a positional insert with columns in sorted order so the
// statement text is deterministic for a given row shape.
func buildInsert(table string, row Row) (string, []interface{}) {
	columns := make([]string, 0, len(row))
	for col := range row {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for idx, col := range columns {
		placeholders[idx] = fmt.Sprintf("$%d", idx+1)
		args[idx] = row[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args
}
