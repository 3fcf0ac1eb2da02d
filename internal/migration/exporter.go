package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// mysqlErrNoSuchTable is the server error for a missing table.
const mysqlErrNoSuchTable = 1146

// Exporter reads full table snapshots from the legacy MySQL store.
type Exporter struct {
	db *sqlx.DB
}

// NewExporter constructs an Exporter.
func NewExporter(db *sqlx.DB) *Exporter {
	return &Exporter{db: db}
}

// Export reads every row of the table. A table that does not exist in the
// source is treated as zero rows, some legacy deployments never created the
// optional tables.
func (e *Exporter) Export(ctx context.Context, table string) ([]Row, error) {
	rows, err := e.db.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoSuchTable {
			return nil, nil
		}
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck

	var result []Row
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		result = append(result, Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return result, nil
}

// Count returns the source row count used by post-import validation. A
// missing table counts as zero.
func (e *Exporter) Count(ctx context.Context, table string) (int, error) {
	var count int
	if err := e.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrNoSuchTable {
			return 0, nil
		}
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}
