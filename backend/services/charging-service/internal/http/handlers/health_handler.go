package handlers

import (
	"net/http"

	"chargex/backend/services/charging-service/internal/payment"
)

// NewHealthHandler reports liveness and the payment mode in effect.
func NewHealthHandler(provider *payment.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"payment": provider.Info(),
		})
	}
}
