package handlers

import (
	"net/http"

	"chargex/backend/services/charging-service/internal/billing"
	"chargex/backend/services/charging-service/internal/payment"
)

// NewPaymentsHandler serves GET /payments: the settlement log plus provider details.
func NewPaymentsHandler(ledger *billing.Ledger, provider *payment.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"provider":     provider.Info(),
			"transactions": ledger.List(),
			"total":        ledger.Total().StringFixed(2),
		})
	}
}
