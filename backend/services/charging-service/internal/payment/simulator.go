package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/models"
)

// Simulator is the deterministic stand-in for the settlement backend. It never fails.
type Simulator struct {
	network  string
	currency string
	ttl      time.Duration
	clock    clock.Clock
}

// NewSimulator builds a simulator from provider config.
func NewSimulator(cfg Config, clk clock.Clock) *Simulator {
	return &Simulator{network: cfg.Network, currency: cfg.Currency, ttl: cfg.QuoteTTL, clock: clk}
}

// Quote returns a simulated payment requirement for amount.
func (s *Simulator) Quote(stationID string, amount decimal.Decimal) models.PaymentQuote {
	return models.PaymentQuote{
		PaymentID:        "pay-" + uuid.NewString()[:8],
		Amount:           amount,
		Currency:         s.currency,
		RecipientAddress: RecipientAddress(ModeSimulated, stationID),
		NetworkID:        s.network,
		ExpiresAt:        s.clock.Now().Add(s.ttl),
		Simulated:        true,
	}
}

// Verify accepts any proof and returns a fresh transaction hash.
func (s *Simulator) Verify(sessionID string) models.VerificationResult {
	hash := txHash(sessionID, uuid.NewString(), s.clock.Now().UnixNano())
	return models.VerificationResult{Verified: true, TxHash: &hash, Simulated: true}
}
