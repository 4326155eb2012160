package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/activity"
	"chargex/backend/services/charging-service/internal/advisor"
	"chargex/backend/services/charging-service/internal/catalog"
	"chargex/backend/services/charging-service/internal/models"
	"chargex/backend/services/charging-service/internal/service"
)

// AdviceHandler serves charging recommendations and in-session advice.
type AdviceHandler struct {
	advisor  *advisor.Advisor
	sessions *service.SessionsService
	catalog  *catalog.Catalog
	activity *activity.Log
	logger   *zap.Logger
}

// NewAdviceHandler ctor.
func NewAdviceHandler(a *advisor.Advisor, sessions *service.SessionsService, c *catalog.Catalog, log *activity.Log, logger *zap.Logger) *AdviceHandler {
	return &AdviceHandler{advisor: a, sessions: sessions, catalog: c, activity: log, logger: logger}
}

// Recommend handles GET /advice/recommendation?lat=&lng=&battery_level=&max_price=&speed=&max_distance=.
func (h *AdviceHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		req advisor.RecommendRequest
		err error
	)
	parse := func(key string, dst *float64) {
		if err != nil {
			return
		}
		if raw := q.Get(key); raw != "" {
			if *dst, err = strconv.ParseFloat(raw, 64); err != nil {
				err = fmt.Errorf("%s must be a number", key)
			}
		}
	}
	parse("lat", &req.Location.Lat)
	parse("lng", &req.Location.Lng)
	parse("battery_level", &req.BatteryLevel)
	parse("max_price", &req.Preferences.MaxPrice)
	parse("max_distance", &req.Preferences.MaxDistance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Preferences.Speed = q.Get("speed")

	rec := h.advisor.Recommend(r.Context(), req)
	h.activity.Append(models.ActivityChargingRecommendation, fmt.Sprintf("%s %s: %s", rec.Action, rec.StationID, rec.Reasoning))
	writeJSON(w, http.StatusOK, rec)
}

// SessionAdvice handles POST /sessions/{id}/advice.
func (h *AdviceHandler) SessionAdvice(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.PollStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if session.Status != models.StatusCharging {
		writeError(w, http.StatusConflict, fmt.Sprintf("session %s is %s", session.ID, session.Status))
		return
	}

	var powerKW float64
	if st, err := h.catalog.Get(session.StationID); err == nil {
		powerKW = st.PowerKW
	}
	adv := h.advisor.Monitor(r.Context(), session, powerKW)
	h.activity.Append(models.ActivitySessionMonitoring, fmt.Sprintf("session %s: %s, %s", session.ID, adv.Action, adv.Advice))
	h.logger.Debug("session advice", zap.String("session_id", session.ID), zap.String("action", adv.Action))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"advice":  adv,
		"session": newSessionView(session),
	})
}
