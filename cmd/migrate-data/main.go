package main

import (
	"context"
	"log"
	"os"

	"github.com/malekaidoudi/creche-sub003/internal/migration"
	"github.com/malekaidoudi/creche-sub003/pkg/config"
	"github.com/malekaidoudi/creche-sub003/pkg/database"
	"github.com/malekaidoudi/creche-sub003/pkg/logger"
)

// migrate-data copies the legacy MySQL database into PostgreSQL. It is a
// one-shot operator tool: destination tables are truncated first, so it must
// never run against a live API database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	source, err := database.NewMySQL(cfg.LegacyDB)
	if err != nil {
		logr.Sugar().Fatalw("legacy database connection failed", "error", err)
	}
	defer source.Close() //nolint:errcheck

	target, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("destination database connection failed", "error", err)
	}
	defer target.Close() //nolint:errcheck

	runner := migration.NewRunner(source, target, logr)
	report, runErr := runner.Run(context.Background())

	if report != nil {
		if err := report.Write(cfg.Migration.ReportPath); err != nil {
			logr.Sugar().Errorw("report write failed", "error", err)
		} else {
			logr.Sugar().Infow("report written", "path", cfg.Migration.ReportPath)
		}
	}

	// Row-level errors are tolerated; only a table-level failure is fatal.
	if runErr != nil {
		logr.Sugar().Errorw("migration failed", "error", runErr)
		os.Exit(1)
	}

	logr.Sugar().Infow("migration complete",
		"tables", len(report.Tables),
		"row_errors", report.RowErrorCount())
}
