package handlers

import (
	"net/http"

	"chargex/backend/services/charging-service/internal/catalog"
)

// StationsHandler serves the station catalog.
type StationsHandler struct {
	catalog *catalog.Catalog
}

// NewStationsHandler ctor.
func NewStationsHandler(c *catalog.Catalog) *StationsHandler {
	return &StationsHandler{catalog: c}
}

// List handles GET /stations. ?available=true keeps only available stations, cheapest first.
func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("available") == "true" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"stations": h.catalog.Available()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stations": h.catalog.List()})
}

// Get handles GET /stations/{id}.
func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.catalog.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
