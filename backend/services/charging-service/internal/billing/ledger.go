package billing

import (
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/models"
)

// Mirror receives a copy of every settlement record. Offer must not block.
type Mirror interface {
	Offer(rec models.SettlementRecord) bool
}

// Ledger keeps settlement records for finished sessions.
type Ledger struct {
	mu       sync.RWMutex
	records  []models.SettlementRecord
	currency string
	clock    clock.Clock
	mirror   Mirror
}

// NewLedger returns an empty ledger billing in currency. mirror may be nil.
func NewLedger(currency string, clk clock.Clock, mirror Mirror) *Ledger {
	return &Ledger{currency: currency, clock: clk, mirror: mirror}
}

// Record appends a settlement for a finalized session.
func (l *Ledger) Record(session models.ChargingSession) models.SettlementRecord {
	rec := models.SettlementRecord{
		ID:          "tx-" + uuid.NewString(),
		SessionID:   session.ID,
		StationID:   session.StationID,
		StationName: session.StationName,
		EnergyKWh:   session.KWhDelivered,
		RatePerKWh:  session.RatePerKWh,
		Amount:      decimal.NewFromFloat(session.CurrentCost).Round(2),
		Currency:    l.currency,
		Status:      string(session.Status),
		CreatedAt:   l.clock.Now(),
	}
	if session.TxHash != nil {
		rec.TxHash = *session.TxHash
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	if l.mirror != nil {
		l.mirror.Offer(rec)
	}
	return rec
}

// List returns records newest first.
func (l *Ledger) List() []models.SettlementRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.SettlementRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		out = append(out, l.records[i])
	}
	return out
}

// BySession returns the records for one session, newest first.
func (l *Ledger) BySession(sessionID string) []models.SettlementRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.SettlementRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if l.records[i].SessionID == sessionID {
			out = append(out, l.records[i])
		}
	}
	return out
}

// Total sums recorded amounts.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, r := range l.records {
		total = total.Add(r.Amount)
	}
	return total
}
