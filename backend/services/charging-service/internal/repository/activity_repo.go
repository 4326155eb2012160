package repository

import (
	"context"
	"database/sql"

	"chargex/backend/services/charging-service/internal/models"
)

// ActivityRepository mirrors the activity log into Postgres.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository ctor.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Save stores one entry.
func (r *ActivityRepository) Save(ctx context.Context, entry models.ActivityLogEntry) error {
	const query = `
		INSERT INTO activity_log (seq, ts, action, details)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, entry.Seq, entry.Timestamp, entry.ActionKind, entry.Detail)
	return err
}

// ListRecent returns the latest entries, oldest first.
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]models.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT seq, ts, action, details FROM (
			SELECT seq, ts, action, details, created_at
			FROM activity_log
			ORDER BY created_at DESC, seq DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ActivityLogEntry
	for rows.Next() {
		var e models.ActivityLogEntry
		if err := rows.Scan(&e.Seq, &e.Timestamp, &e.ActionKind, &e.Detail); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
