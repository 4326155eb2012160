package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/service"
)

// SessionsHandler exposes the session lifecycle.
type SessionsHandler struct {
	svc    *service.SessionsService
	logger *zap.Logger
}

// NewSessionsHandler builds handler set.
func NewSessionsHandler(svc *service.SessionsService, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{svc: svc, logger: logger}
}

type startSessionRequest struct {
	StationID string  `json:"station_id"`
	KWhAmount float64 `json:"kwh_amount"`
}

type paymentRequest struct {
	Proof json.RawMessage `json:"proof"`
}

// Start handles POST /sessions.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.StationID == "" {
		writeError(w, http.StatusBadRequest, "station_id is required")
		return
	}

	session, err := h.svc.StartSession(r.Context(), ownerFromRequest(r), req.StationID, req.KWhAmount)
	if err != nil {
		h.logger.Info("start session rejected", zap.String("station_id", req.StationID), zap.Error(err))
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_id": session.ID,
		"quote":      session.Quote,
		"session":    newSessionView(session),
	})
}

// List handles GET /sessions for the calling owner. ?all=true lists every owner.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	if r.URL.Query().Get("all") == "true" {
		owner = ""
	}
	sessions := h.svc.ListSessions(owner)
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, newSessionView(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// Active handles GET /sessions/active: the calling owner's live session, if any.
func (h *SessionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	session, ok := h.svc.ActiveSession(owner)
	if !ok {
		writeError(w, http.StatusNotFound, "no active session for "+owner)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

// Get handles GET /sessions/{id}, returning the projected status.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.PollStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

// Pay handles POST /sessions/{id}/payment.
func (h *SessionsHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	outcome, err := h.svc.VerifyPayment(r.Context(), r.PathValue("id"), req.Proof)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"verification": outcome.Result,
		"session":      newSessionView(outcome.Session),
	})
}

// Stop handles POST /sessions/{id}/stop.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.StopSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

// Evict handles DELETE /sessions/{id}.
func (h *SessionsHandler) Evict(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Evict(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
