package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"chargex/backend/services/charging-service/internal/models"
	"chargex/backend/services/charging-service/internal/service"
)

// OwnerHeader identifies the owning context of a request.
const OwnerHeader = "X-Owner-ID"

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func ownerFromRequest(r *http.Request) string {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		return service.DefaultOwner
	}
	return owner
}

// sessionView adds derived progress to a session snapshot.
type sessionView struct {
	models.ChargingSession
	Progress        float64 `json:"progress"`
	ProgressPercent float64 `json:"progress_percent"`
}

func newSessionView(s models.ChargingSession) sessionView {
	p := s.Progress()
	return sessionView{ChargingSession: s, Progress: p, ProgressPercent: float64(int(p*10000+0.5)) / 100}
}
