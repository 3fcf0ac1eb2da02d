package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// tableOrder lists tables in foreign-key dependency order, parents before
// the tables that reference them.
var tableOrder = []string{
	"users",
	"children",
	"enrollments",
	"enrollment_documents",
	"children_documents",
	"attendance",
	"notifications",
	"settings",
}

// Runner orchestrates the one-shot export, convert, import and validate
// pipeline. It is not resumable: destination tables are truncated before
// reimporting, so rerunning reproduces the same end state from the same
// source snapshot.
type Runner struct {
	exporter   *Exporter
	importer   *Importer
	converters map[string]RowConverter
	logger     *zap.Logger
}

// NewRunner wires a Runner over the legacy and destination stores.
func NewRunner(source, target *sqlx.DB, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		exporter:   NewExporter(source),
		importer:   NewImporter(target),
		converters: Converters(),
		logger:     logger,
	}
}

// Run migrates every table in dependency order. Row-level failures are
// tolerated and reported; a table-level failure aborts the run. The returned
// report is complete in both cases.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}
	ids := NewIDMap()

	// All destination tables are cleared before any import, children-first.
	// Truncating mid-run would let a CASCADE wipe already imported rows.
	if err := r.importer.TruncateAll(ctx, tableOrder); err != nil {
		report.Fatal = err.Error()
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	for _, table := range tableOrder {
		result, err := r.migrateTable(ctx, table, ids)
		if result != nil {
			report.Tables = append(report.Tables, *result)
		}
		if err != nil {
			report.Fatal = err.Error()
			report.FinishedAt = time.Now().UTC()
			return report, err
		}
		if table == "enrollments" {
			r.linkChildEnrollments(ctx, ids, report)
		}
	}

	if err := r.validate(ctx, report); err != nil {
		report.Fatal = err.Error()
		report.FinishedAt = time.Now().UTC()
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func (r *Runner) migrateTable(ctx context.Context, table string, ids *IDMap) (*TableResult, error) {
	start := time.Now()
	result := &TableResult{Table: table}

	convert, ok := r.converters[table]
	if !ok {
		return result, fmt.Errorf("no converter registered for table %s", table)
	}

	sourceRows, err := r.exporter.Export(ctx, table)
	if err != nil {
		return result, err
	}
	result.Exported = len(sourceRows)

	converted := make([]PreparedRow, 0, len(sourceRows))
	for _, src := range sourceRows {
		legacyID := sourceRowRef(src)
		dst, err := convert(src, ids)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{
				Table:    table,
				LegacyID: legacyID,
				Reason:   err.Error(),
			})
			continue
		}
		converted = append(converted, PreparedRow{LegacyID: legacyID, Row: dst})
	}

	inserted, rowErrors, err := r.importer.ImportTable(ctx, table, converted)
	if err != nil {
		return result, err
	}
	result.Imported = inserted
	result.RowErrors = append(result.RowErrors, rowErrors...)
	result.DurationMS = time.Since(start).Milliseconds()

	r.logger.Info("table migrated",
		zap.String("table", table),
		zap.Int("exported", result.Exported),
		zap.Int("imported", result.Imported),
		zap.Int("row_errors", len(result.RowErrors)))
	return result, nil
}

// linkChildEnrollments backfills the deferred child to enrollment links now
// that the enrollments id map is populated. Unresolvable or failing links are
// recorded as row errors on the children table, they never abort the run.
func (r *Runner) linkChildEnrollments(ctx context.Context, ids *IDMap, report *Report) {
	links := ids.ChildEnrollmentLinks()
	if len(links) == 0 {
		return
	}

	var children *TableResult
	for idx := range report.Tables {
		if report.Tables[idx].Table == "children" {
			children = &report.Tables[idx]
			break
		}
	}

	linked := 0
	for _, link := range links {
		enrollmentID, ok := ids.Get("enrollments", link.legacyEnrollmentID)
		if !ok {
			if children != nil {
				children.RowErrors = append(children.RowErrors, RowError{
					Table:    "children",
					LegacyID: link.legacyChildID,
					Reason:   fmt.Sprintf("unknown enrollment_id %s", link.legacyEnrollmentID),
				})
			}
			continue
		}
		if err := r.importer.LinkChildEnrollment(ctx, link.childID, enrollmentID); err != nil {
			if children != nil {
				children.RowErrors = append(children.RowErrors, RowError{
					Table:    "children",
					LegacyID: link.legacyChildID,
					Reason:   err.Error(),
				})
			}
			continue
		}
		linked++
	}
	r.logger.Info("child enrollments linked",
		zap.Int("linked", linked),
		zap.Int("deferred", len(links)))
}

// sourceRowRef names a source row for the report, preferring the legacy id
// and falling back to the key column for keyed tables like settings.
func sourceRowRef(src Row) string {
	if src["id"] != nil {
		return legacyKey(src["id"])
	}
	if src["key"] != nil {
		return legacyKey(src["key"])
	}
	return ""
}

// validate compares per-table row counts. Mismatches are flagged in the
// report but never halt the run.
func (r *Runner) validate(ctx context.Context, report *Report) error {
	for idx := range report.Tables {
		result := &report.Tables[idx]
		sourceCount, err := r.exporter.Count(ctx, result.Table)
		if err != nil {
			return err
		}
		targetCount, err := r.importer.Count(ctx, result.Table)
		if err != nil {
			return err
		}
		result.SourceCount = sourceCount
		result.TargetCount = targetCount
		result.CountMatch = sourceCount == targetCount
		if !result.CountMatch {
			r.logger.Warn("row count mismatch",
				zap.String("table", result.Table),
				zap.Int("source", sourceCount),
				zap.Int("target", targetCount))
		}
	}
	return nil
}
