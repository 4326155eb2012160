package models

import "time"

// Activity kinds appended by the session engine and the advice endpoints.
const (
	ActivitySessionStart           = "session_start"
	ActivityPaymentVerified        = "payment_verified"
	ActivityPaymentFailed          = "payment_failed"
	ActivitySessionComplete        = "session_complete"
	ActivitySessionStop            = "session_stop"
	ActivitySessionEvicted         = "session_evicted"
	ActivityChargingRecommendation = "charging_recommendation"
	ActivitySessionMonitoring      = "session_monitoring"
)

// ActivityLogEntry is one append-only audit record.
type ActivityLogEntry struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	ActionKind string    `json:"action"`
	Detail     string    `json:"details"`
}
