package migration

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TableResult summarises the migration of one table.
type TableResult struct {
	Table       string     `json:"table"`
	Exported    int        `json:"exported"`
	Imported    int        `json:"imported"`
	SourceCount int        `json:"source_count"`
	TargetCount int        `json:"target_count"`
	CountMatch  bool       `json:"count_match"`
	DurationMS  int64      `json:"duration_ms"`
	RowErrors   []RowError `json:"row_errors,omitempty"`
}

// Report is the persisted audit record of one migration run.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Tables     []TableResult `json:"tables"`
	Fatal      string        `json:"fatal,omitempty"`
}

// RowErrorCount sums tolerated row failures across all tables.
func (r *Report) RowErrorCount() int {
	total := 0
	for _, t := range r.Tables {
		total += len(t.RowErrors)
	}
	return total
}

// Write persists the report as indented JSON.
func (r *Report) Write(path string) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal migration report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write migration report: %w", err)
	}
	return nil
}
