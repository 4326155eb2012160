package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS activity_log (
		seq        BIGINT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		action     TEXT NOT NULL,
		details    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS settlement_records (
		id           TEXT PRIMARY KEY,
		session_id   TEXT NOT NULL,
		station_id   TEXT NOT NULL,
		station_name TEXT NOT NULL,
		energy_kwh   DOUBLE PRECISION NOT NULL,
		rate_per_kwh DOUBLE PRECISION NOT NULL,
		amount       NUMERIC(12, 2) NOT NULL,
		currency     TEXT NOT NULL,
		tx_hash      TEXT NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the audit tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository: migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
