package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"chargex/backend/services/charging-service/internal/models"
)

// SettlementRepository mirrors settlement records into Postgres.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository returns repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Save inserts a record; replays of the same id are ignored.
func (r *SettlementRepository) Save(ctx context.Context, rec models.SettlementRecord) error {
	const query = `
		INSERT INTO settlement_records (id, session_id, station_id, station_name, energy_kwh, rate_per_kwh, amount, currency, tx_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.StationID,
		rec.StationName,
		rec.EnergyKWh,
		rec.RatePerKWh,
		rec.Amount.StringFixed(2),
		rec.Currency,
		rec.TxHash,
		rec.Status,
		rec.CreatedAt,
	)
	return err
}

// GetBySession returns records for a session, newest first.
func (r *SettlementRepository) GetBySession(ctx context.Context, sessionID string) ([]models.SettlementRecord, error) {
	const query = `
		SELECT id, session_id, station_id, station_name, energy_kwh, rate_per_kwh, amount, currency, tx_hash, status, created_at
		FROM settlement_records
		WHERE session_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SettlementRecord
	for rows.Next() {
		var (
			rec    models.SettlementRecord
			amount string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.StationID,
			&rec.StationName,
			&rec.EnergyKWh,
			&rec.RatePerKWh,
			&amount,
			&rec.Currency,
			&rec.TxHash,
			&rec.Status,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("repository: settlement %s amount: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
