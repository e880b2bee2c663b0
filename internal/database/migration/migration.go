// Package migration creates the scan schema on first boot. The check is a
// sentinel table lookup, so an already migrated database starts fast.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_scan_results",
		SQL: `CREATE TABLE IF NOT EXISTS scan_results (
  id              TEXT             PRIMARY KEY,
  owner_id        TEXT             NOT NULL,
  image_path      TEXT             NOT NULL,
  image_url       TEXT             NOT NULL,
  prediction      TEXT             NOT NULL,
  confidence      DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
  risk_level      TEXT             NOT NULL CHECK (risk_level IN ('Low', 'Medium', 'High')),
  recommendations JSONB            NOT NULL DEFAULT '[]',
  additional_data JSONB,
  scan_date       TIMESTAMPTZ      NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_scan_results_owner_scan_date",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scan_results_owner_scan_date ON scan_results (owner_id, scan_date DESC);`,
	},
	{
		Name: "create_index_scan_results_risk_level",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scan_results_risk_level ON scan_results (owner_id, risk_level);`,
	},
	{
		Name: "create_index_scan_results_prediction",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_scan_results_prediction ON scan_results (owner_id, prediction);`,
	},
}

// EnsureMigrated checks if the scan_results table exists and runs the
// migration steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	start := time.Now()
	logger = logger.Named("migration")

	var exists bool
	query := "SELECT to_regclass('public.scan_results') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		logger.Error("sentinel table check failed", zap.Error(err))
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logger.Info("schema already exists, skipping migration",
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil
	}

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("migration step failed",
				zap.String("migration_step", step.Name),
				zap.Error(err))
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logger.Info("migration step applied",
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()))
	}

	logger.Info("migration complete",
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return nil
}
