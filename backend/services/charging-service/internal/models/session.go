package models

import "time"

// SessionStatus is a state of the charging session lifecycle.
type SessionStatus string

// Lifecycle states. AwaitingPayment and Charging are live; the rest are terminal.
const (
	StatusAwaitingPayment SessionStatus = "awaiting_payment"
	StatusCharging        SessionStatus = "charging"
	StatusCompleted       SessionStatus = "completed"
	StatusStopped         SessionStatus = "stopped"
	StatusFailed          SessionStatus = "failed"
)

// Live reports whether the status still accepts lifecycle operations.
func (s SessionStatus) Live() bool {
	return s == StatusAwaitingPayment || s == StatusCharging
}

// Terminal reports whether the session has ended.
func (s SessionStatus) Terminal() bool {
	return !s.Live()
}

// ChargingSession is the central lifecycle entity.
type ChargingSession struct {
	ID                string        `json:"id"`
	Owner             string        `json:"owner"`
	StationID         string        `json:"station_id"`
	StationName       string        `json:"station_name"`
	RequestedKWh      float64       `json:"requested_kwh"`
	RatePerKWh        float64       `json:"rate_per_kwh"`
	Status            SessionStatus `json:"status"`
	Quote             *PaymentQuote `json:"quote"`
	TxHash            *string       `json:"tx_hash"`
	FailureReason     *string       `json:"failure_reason,omitempty"`
	StartedChargingAt *time.Time    `json:"started_charging_at"`
	ElapsedSeconds    float64       `json:"elapsed_seconds"`
	KWhDelivered      float64       `json:"kwh_delivered"`
	CurrentCost       float64       `json:"current_cost"`
	CreatedAt         time.Time     `json:"created_at"`
	EndedAt           *time.Time    `json:"ended_at"`
}

// Progress returns delivered energy as a fraction of the request in [0, 1].
func (s ChargingSession) Progress() float64 {
	if s.RequestedKWh <= 0 {
		return 0
	}
	return s.KWhDelivered / s.RequestedKWh
}

// Clone returns a deep copy safe to hand out of the engine.
func (s ChargingSession) Clone() ChargingSession {
	out := s
	if s.Quote != nil {
		q := *s.Quote
		out.Quote = &q
	}
	out.TxHash = cloneString(s.TxHash)
	out.FailureReason = cloneString(s.FailureReason)
	out.StartedChargingAt = cloneTime(s.StartedChargingAt)
	out.EndedAt = cloneTime(s.EndedAt)
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
