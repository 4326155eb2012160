package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/models"
	redisstore "chargex/backend/services/charging-service/internal/redis"
)

// DefaultOwner is used when a caller does not identify itself.
const DefaultOwner = "default"

const quoteExpiredReason = "quote expired"

// StationLookup resolves stations by id.
type StationLookup interface {
	Get(id string) (models.Station, error)
}

// PaymentProvider quotes and verifies payments.
type PaymentProvider interface {
	Quote(ctx context.Context, station models.Station, kwh float64) (models.PaymentQuote, error)
	Verify(ctx context.Context, sessionID string, quote *models.PaymentQuote, proof json.RawMessage) models.VerificationResult
}

// ActivityRecorder appends audit entries.
type ActivityRecorder interface {
	Append(kind, detail string) models.ActivityLogEntry
}

// SettlementRecorder records finished sessions.
type SettlementRecorder interface {
	Record(session models.ChargingSession) models.SettlementRecord
}

// ActiveCache mirrors each owner's live session. Failures are logged and ignored.
type ActiveCache interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Delete(ctx context.Context, owner, sessionID string) error
}

// Deps groups the collaborators of SessionsService. Cache is optional.
type Deps struct {
	Stations StationLookup
	Payments PaymentProvider
	Activity ActivityRecorder
	Ledger   SettlementRecorder
	Cache    ActiveCache
	Clock    clock.Clock
	Logger   *zap.Logger
}

// VerifyOutcome is the verdict plus the session after it was applied.
type VerifyOutcome struct {
	Result  models.VerificationResult `json:"verification"`
	Session models.ChargingSession    `json:"session"`
}

type entry struct {
	mu      sync.Mutex
	session models.ChargingSession
	evicted bool
}

// SessionsService owns the session lifecycle. Each session is guarded by its own mutex;
// the registry lock is only ever taken after a session lock, never before one.
// Cache writes happen under the session lock so they reach Redis in transition order.
type SessionsService struct {
	mu       sync.Mutex
	sessions map[string]*entry
	order    []string
	live     map[string]string

	model    ProgressModel
	stations StationLookup
	payments PaymentProvider
	activity ActivityRecorder
	ledger   SettlementRecorder
	cache    ActiveCache
	clock    clock.Clock
	logger   *zap.Logger
}

// NewSessionsService builds service.
func NewSessionsService(deps Deps, model ProgressModel) *SessionsService {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &SessionsService{
		sessions: make(map[string]*entry),
		live:     make(map[string]string),
		model:    model.withDefaults(),
		stations: deps.Stations,
		payments: deps.Payments,
		activity: deps.Activity,
		ledger:   deps.Ledger,
		cache:    deps.Cache,
		clock:    deps.Clock,
		logger:   deps.Logger,
	}
}

// Model returns the progress model in use.
func (s *SessionsService) Model() ProgressModel {
	return s.model
}

// StartSession creates an AwaitingPayment session for owner at stationID.
func (s *SessionsService) StartSession(ctx context.Context, owner, stationID string, kwh float64) (models.ChargingSession, error) {
	owner = normalizeOwner(owner)
	if kwh <= 0 {
		return models.ChargingSession{}, fmt.Errorf("%w: kwh amount must be positive", models.ErrValidation)
	}
	station, err := s.stations.Get(stationID)
	if err != nil {
		return models.ChargingSession{}, err
	}
	if !station.Available {
		return models.ChargingSession{}, fmt.Errorf("%w: station %q is not available", models.ErrValidation, stationID)
	}

	s.expireStaleQuote(ctx, owner)

	id := uuid.NewString()
	s.mu.Lock()
	if current, busy := s.live[owner]; busy {
		s.mu.Unlock()
		return models.ChargingSession{}, fmt.Errorf("%w: owner %q already has live session %s", models.ErrInvalidState, owner, current)
	}
	s.live[owner] = id
	s.mu.Unlock()

	quote, err := s.payments.Quote(ctx, station, kwh)
	if err != nil {
		s.release(owner, id)
		s.logger.Warn("quote failed", zap.String("station_id", stationID), zap.Float64("kwh", kwh), zap.Error(err))
		return models.ChargingSession{}, err
	}

	now := s.clock.Now()
	session := models.ChargingSession{
		ID:           id,
		Owner:        owner,
		StationID:    station.ID,
		StationName:  station.Name,
		RequestedKWh: kwh,
		RatePerKWh:   station.RatePerKWh,
		Status:       models.StatusAwaitingPayment,
		Quote:        &quote,
		CreatedAt:    now,
	}
	e := &entry{session: session}
	e.mu.Lock()
	s.mu.Lock()
	s.sessions[id] = e
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.activity.Append(models.ActivitySessionStart, fmt.Sprintf("session %s started at %s for %.2f kWh, quote %s %s",
		id, station.Name, kwh, quote.Amount.StringFixed(2), quote.Currency))
	s.logger.Info("session started",
		zap.String("session_id", id),
		zap.String("owner", owner),
		zap.String("station_id", station.ID),
		zap.Float64("kwh", kwh),
		zap.String("amount", quote.Amount.StringFixed(2)),
	)

	out := session.Clone()
	s.syncCache(ctx, out)
	e.mu.Unlock()
	return out, nil
}

// VerifyPayment applies the provider's verdict for proof to an AwaitingPayment session.
func (s *SessionsService) VerifyPayment(ctx context.Context, sessionID string, proof json.RawMessage) (VerifyOutcome, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return VerifyOutcome{}, err
	}

	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return VerifyOutcome{}, notFound(sessionID)
	}
	if e.session.Status != models.StatusAwaitingPayment {
		status := e.session.Status
		e.mu.Unlock()
		return VerifyOutcome{}, fmt.Errorf("%w: session %s is %s", models.ErrInvalidState, sessionID, status)
	}

	var result models.VerificationResult
	if e.session.Quote != nil && e.session.Quote.Expired(s.clock.Now()) {
		reason := quoteExpiredReason
		result = models.VerificationResult{Verified: false, Error: &reason}
	} else {
		result = s.payments.Verify(ctx, sessionID, e.session.Quote, proof)
	}

	now := s.clock.Now()
	if result.Verified {
		e.session.Status = models.StatusCharging
		e.session.TxHash = result.TxHash
		e.session.StartedChargingAt = &now
		s.project(&e.session, s.model.Elapsed(now, now))
		s.activity.Append(models.ActivityPaymentVerified, fmt.Sprintf("session %s payment verified, tx %s", sessionID, deref(result.TxHash)))
		s.logger.Info("payment verified", zap.String("session_id", sessionID), zap.Bool("simulated", result.Simulated))
	} else {
		reason := "payment rejected"
		if result.Error != nil && *result.Error != "" {
			reason = *result.Error
		}
		s.fail(e, reason, now)
	}
	out := VerifyOutcome{Result: result, Session: e.session.Clone()}
	s.syncCache(ctx, out.Session)
	e.mu.Unlock()
	return out, nil
}

// PollStatus recomputes progress of a Charging session and returns the snapshot.
// Sessions in any other state are returned unchanged.
func (s *SessionsService) PollStatus(ctx context.Context, sessionID string) (models.ChargingSession, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return models.ChargingSession{}, err
	}

	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return models.ChargingSession{}, notFound(sessionID)
	}
	changed := false
	if e.session.Status == models.StatusCharging {
		changed = s.advance(e, s.clock.Now())
	}
	out := e.session.Clone()
	if changed {
		s.syncCache(ctx, out)
	}
	e.mu.Unlock()
	return out, nil
}

// StopSession ends a Charging session at its current progress.
// A session that reaches its target during the final projection is returned as Completed.
func (s *SessionsService) StopSession(ctx context.Context, sessionID string) (models.ChargingSession, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return models.ChargingSession{}, err
	}

	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return models.ChargingSession{}, notFound(sessionID)
	}
	if e.session.Status != models.StatusCharging {
		status := e.session.Status
		e.mu.Unlock()
		return models.ChargingSession{}, fmt.Errorf("%w: session %s is %s", models.ErrInvalidState, sessionID, status)
	}

	now := s.clock.Now()
	s.advance(e, now)
	if e.session.Status == models.StatusCharging {
		e.session.Status = models.StatusStopped
		e.session.EndedAt = &now
		s.release(e.session.Owner, e.session.ID)
		s.ledger.Record(e.session)
		s.activity.Append(models.ActivitySessionStop, fmt.Sprintf("session %s stopped at %.4f kWh, cost %.2f",
			sessionID, e.session.KWhDelivered, e.session.CurrentCost))
		s.logger.Info("session stopped",
			zap.String("session_id", sessionID),
			zap.Float64("kwh", e.session.KWhDelivered),
			zap.Float64("cost", e.session.CurrentCost),
		)
	}
	out := e.session.Clone()
	s.syncCache(ctx, out)
	e.mu.Unlock()
	return out, nil
}

// GetSession returns the stored snapshot without projecting progress.
func (s *SessionsService) GetSession(sessionID string) (models.ChargingSession, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return models.ChargingSession{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return models.ChargingSession{}, notFound(sessionID)
	}
	return e.session.Clone(), nil
}

// ListSessions returns the owner's sessions in creation order. An empty owner lists all.
func (s *SessionsService) ListSessions(owner string) []models.ChargingSession {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.sessions[id])
	}
	s.mu.Unlock()

	owner = strings.TrimSpace(owner)
	out := make([]models.ChargingSession, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.evicted && (owner == "" || e.session.Owner == owner) {
			out = append(out, e.session.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

// ActiveSession returns the owner's live session, if any.
func (s *SessionsService) ActiveSession(owner string) (models.ChargingSession, bool) {
	owner = normalizeOwner(owner)
	s.mu.Lock()
	id, ok := s.live[owner]
	s.mu.Unlock()
	if !ok {
		return models.ChargingSession{}, false
	}
	session, err := s.GetSession(id)
	if err != nil || !session.Status.Live() {
		return models.ChargingSession{}, false
	}
	return session, true
}

// Evict removes a terminal session from the store.
func (s *SessionsService) Evict(sessionID string) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return notFound(sessionID)
	}
	if e.session.Status.Live() {
		return fmt.Errorf("%w: session %s is %s", models.ErrInvalidState, sessionID, e.session.Status)
	}
	e.evicted = true

	s.mu.Lock()
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.activity.Append(models.ActivitySessionEvicted, fmt.Sprintf("session %s evicted", sessionID))
	return nil
}

func (s *SessionsService) lookup(sessionID string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFound(sessionID)
	}
	return e, nil
}

// expireStaleQuote fails the owner's AwaitingPayment session once its quote has expired.
func (s *SessionsService) expireStaleQuote(ctx context.Context, owner string) {
	s.mu.Lock()
	e := s.sessions[s.live[owner]]
	s.mu.Unlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	now := s.clock.Now()
	expired := !e.evicted &&
		e.session.Status == models.StatusAwaitingPayment &&
		e.session.Quote != nil && e.session.Quote.Expired(now)
	if expired {
		s.fail(e, quoteExpiredReason, now)
	}
	if expired {
		s.syncCache(ctx, e.session.Clone())
	}
	e.mu.Unlock()
}

// advance projects a Charging session to now and completes it at the target.
// Caller holds e.mu. Reports whether the snapshot changed.
func (s *SessionsService) advance(e *entry, now time.Time) bool {
	before := e.session.ElapsedSeconds
	elapsed := s.model.Elapsed(*e.session.StartedChargingAt, now)
	if elapsed < before {
		elapsed = before
	}
	s.project(&e.session, elapsed)
	if e.session.ElapsedSeconds >= s.model.FullChargeSeconds || e.session.KWhDelivered >= e.session.RequestedKWh {
		s.complete(e, now)
		return true
	}
	return e.session.ElapsedSeconds != before
}

func (s *SessionsService) project(session *models.ChargingSession, elapsed float64) {
	session.ElapsedSeconds = elapsed
	session.KWhDelivered = s.model.Delivered(session.RequestedKWh, elapsed)
	session.CurrentCost = Cost(session.KWhDelivered, session.RatePerKWh)
}

func (s *SessionsService) complete(e *entry, now time.Time) {
	e.session.Status = models.StatusCompleted
	e.session.ElapsedSeconds = s.model.FullChargeSeconds
	e.session.KWhDelivered = e.session.RequestedKWh
	e.session.CurrentCost = Cost(e.session.KWhDelivered, e.session.RatePerKWh)
	e.session.EndedAt = &now
	s.release(e.session.Owner, e.session.ID)
	s.ledger.Record(e.session)
	s.activity.Append(models.ActivitySessionComplete, fmt.Sprintf("session %s completed, %.2f kWh, cost %.2f",
		e.session.ID, e.session.KWhDelivered, e.session.CurrentCost))
	s.logger.Info("session completed",
		zap.String("session_id", e.session.ID),
		zap.Float64("kwh", e.session.KWhDelivered),
		zap.Float64("cost", e.session.CurrentCost),
	)
}

func (s *SessionsService) fail(e *entry, reason string, now time.Time) {
	e.session.Status = models.StatusFailed
	e.session.FailureReason = &reason
	e.session.EndedAt = &now
	s.release(e.session.Owner, e.session.ID)
	s.activity.Append(models.ActivityPaymentFailed, fmt.Sprintf("session %s payment failed: %s", e.session.ID, reason))
	s.logger.Warn("payment failed", zap.String("session_id", e.session.ID), zap.String("reason", reason))
}

func (s *SessionsService) release(owner, sessionID string) {
	s.mu.Lock()
	if s.live[owner] == sessionID {
		delete(s.live, owner)
	}
	s.mu.Unlock()
}

func (s *SessionsService) syncCache(ctx context.Context, session models.ChargingSession) {
	if s.cache == nil {
		return
	}
	var err error
	if session.Status.Live() {
		err = s.cache.Save(ctx, redisstore.ActiveSession{
			SessionID: session.ID,
			Owner:     session.Owner,
			StationID: session.StationID,
			Status:    string(session.Status),
			UpdatedAt: s.clock.Now(),
		})
	} else {
		err = s.cache.Delete(ctx, session.Owner, session.ID)
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Warn("failed to sync active session cache", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func normalizeOwner(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return DefaultOwner
	}
	return owner
}

func notFound(sessionID string) error {
	return fmt.Errorf("%w: session %q", models.ErrNotFound, sessionID)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
