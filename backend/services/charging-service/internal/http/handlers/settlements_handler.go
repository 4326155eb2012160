package handlers

import (
	"context"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"chargex/backend/services/charging-service/internal/billing"
	"chargex/backend/services/charging-service/internal/models"
	"chargex/backend/services/charging-service/internal/service"
)

// SettlementArchive is the durable settlement store.
type SettlementArchive interface {
	GetBySession(ctx context.Context, sessionID string) ([]models.SettlementRecord, error)
}

// NewSettlementsHandler serves GET /sessions/{id}/settlements. Records come from the
// in-memory ledger merged with archive, which may be nil. Archived records survive an
// eviction or a restart; the ledger covers rows the audit spool has not written yet.
func NewSettlementsHandler(svc *service.SessionsService, ledger *billing.Ledger, archive SettlementArchive, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		records := ledger.BySession(id)
		if archive != nil {
			stored, err := archive.GetBySession(r.Context(), id)
			if err != nil {
				logger.Warn("settlement archive read failed", zap.String("session_id", id), zap.Error(err))
			}
			records = mergeSettlements(records, stored)
		}
		if len(records) == 0 {
			if _, err := svc.GetSession(id); err != nil {
				writeServiceError(w, err)
				return
			}
		}
		if records == nil {
			records = []models.SettlementRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session_id":  id,
			"settlements": records,
		})
	}
}

func mergeSettlements(live, stored []models.SettlementRecord) []models.SettlementRecord {
	seen := make(map[string]struct{}, len(live))
	for _, rec := range live {
		seen[rec.ID] = struct{}{}
	}
	for _, rec := range stored {
		if _, ok := seen[rec.ID]; !ok {
			live = append(live, rec)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	return live
}
