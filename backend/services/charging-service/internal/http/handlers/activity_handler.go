package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/activity"
	"chargex/backend/services/charging-service/internal/models"
)

// ActivityArchive is the durable activity store.
type ActivityArchive interface {
	ListRecent(ctx context.Context, limit int) ([]models.ActivityLogEntry, error)
}

// NewActivityHandler serves GET /activity?limit=N.
func NewActivityHandler(log *activity.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"logs": log.List(limit)})
	}
}

// NewActivityArchiveHandler serves GET /activity/archive?limit=N from Postgres,
// oldest first. The archive outlives the bounded in-memory log.
func NewActivityArchiveHandler(archive ActivityArchive, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		entries, err := archive.ListRecent(r.Context(), limit)
		if err != nil {
			logger.Error("activity archive read failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if entries == nil {
			entries = []models.ActivityLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}
