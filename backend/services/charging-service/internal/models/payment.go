package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentQuote is the payment requirement attached to a session at creation.
type PaymentQuote struct {
	PaymentID        string          `json:"payment_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	RecipientAddress string          `json:"recipient_address"`
	NetworkID        string          `json:"network_id"`
	ExpiresAt        time.Time       `json:"expires_at"`
	Simulated        bool            `json:"simulated"`
}

// Expired reports whether the quote can no longer be paid at now.
func (q PaymentQuote) Expired(now time.Time) bool {
	return !q.ExpiresAt.IsZero() && !now.Before(q.ExpiresAt)
}

// PaymentProof is caller-submitted evidence that a quote was paid. The blob is opaque.
type PaymentProof struct {
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"proof"`
}

// VerificationResult is the verdict for a submitted proof.
type VerificationResult struct {
	Verified  bool    `json:"verified"`
	TxHash    *string `json:"tx_hash"`
	Error     *string `json:"error"`
	Simulated bool    `json:"simulated"`
}

// SettlementRecord is the ledger entry written when a session ends.
type SettlementRecord struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	StationID   string          `json:"station_id"`
	StationName string          `json:"station_name"`
	EnergyKWh   float64         `json:"energy_kwh"`
	RatePerKWh  float64         `json:"rate_per_kwh"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	TxHash      string          `json:"tx_hash"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}
