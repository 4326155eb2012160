package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/activity"
	"chargex/backend/services/charging-service/internal/billing"
	"chargex/backend/services/charging-service/internal/catalog"
	"chargex/backend/services/charging-service/internal/models"
	"chargex/backend/services/charging-service/internal/payment"
	redisstore "chargex/backend/services/charging-service/internal/redis"
)

var proof = json.RawMessage(`{"signature":"0xdeadbeef"}`)

type harness struct {
	svc      *SessionsService
	clock    *clock.Fake
	activity *activity.Log
	ledger   *billing.Ledger
}

func testStations() []models.Station {
	return []models.Station{
		{ID: "S1", Name: "Scenario", Available: true, PowerKW: 150, RatePerKWh: 20.5, RateCryptoPerKWh: 0.25},
		{ID: "S2", Name: "Second", Available: true, PowerKW: 100, RatePerKWh: 21, RateCryptoPerKWh: 0.26},
		{ID: "OFF", Name: "Offline", Available: false, PowerKW: 50, RatePerKWh: 19.5, RateCryptoPerKWh: 0.24},
	}
}

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	cat, err := catalog.New(testStations())
	require.NoError(t, err)

	log := activity.NewLog(clk, nil)
	ledger := billing.NewLedger("INR", clk, nil)
	deps := Deps{
		Stations: cat,
		Payments: payment.NewProvider(payment.Config{Mode: payment.ModeSimulated, Network: "base-sepolia", Currency: "USDC"}, nil, clk, zap.NewNop()),
		Activity: log,
		Ledger:   ledger,
		Clock:    clk,
		Logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &harness{
		svc:      NewSessionsService(deps, DefaultProgressModel()),
		clock:    clk,
		activity: log,
		ledger:   ledger,
	}
}

func (h *harness) startCharging(t *testing.T, owner, station string, kwh float64) models.ChargingSession {
	t.Helper()
	s, err := h.svc.StartSession(context.Background(), owner, station, kwh)
	require.NoError(t, err)
	out, err := h.svc.VerifyPayment(context.Background(), s.ID, proof)
	require.NoError(t, err)
	require.True(t, out.Result.Verified)
	require.Equal(t, models.StatusCharging, out.Session.Status)
	return out.Session
}

func (h *harness) activityKinds() []string {
	var kinds []string
	for _, e := range h.activity.List(0) {
		kinds = append(kinds, e.ActionKind)
	}
	return kinds
}

func assertInvariants(t *testing.T, s models.ChargingSession) {
	t.Helper()
	assert.GreaterOrEqual(t, s.KWhDelivered, 0.0)
	assert.LessOrEqual(t, s.KWhDelivered, s.RequestedKWh)
	assert.InDelta(t, math.Round(s.KWhDelivered*s.RatePerKWh*100)/100, s.CurrentCost, 1e-9)
}

func TestChargingScenarioToCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	started, err := h.svc.StartSession(ctx, "", "S1", 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, started.Status)
	assert.Equal(t, DefaultOwner, started.Owner)
	require.NotNil(t, started.Quote)
	assert.Equal(t, "2.50", started.Quote.Amount.StringFixed(2))
	assert.Equal(t, 20.5, started.RatePerKWh)

	outcome, err := h.svc.VerifyPayment(ctx, started.ID, proof)
	require.NoError(t, err)
	assert.True(t, outcome.Result.Verified)
	require.NotNil(t, outcome.Session.TxHash)
	require.NotNil(t, outcome.Session.StartedChargingAt)

	first, err := h.svc.PollStatus(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCharging, first.Status)
	assert.InDelta(t, 0.0556, first.KWhDelivered, 1e-4)
	assert.Greater(t, first.KWhDelivered, 0.0)
	assertInvariants(t, first)

	again, err := h.svc.PollStatus(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, first.KWhDelivered, again.KWhDelivered)
	assert.Equal(t, first.ElapsedSeconds, again.ElapsedSeconds)

	prev := again
	for i := 0; i < 40 && prev.Status == models.StatusCharging; i++ {
		h.clock.Advance(time.Second)
		cur, err := h.svc.PollStatus(ctx, started.ID)
		require.NoError(t, err)
		assertInvariants(t, cur)
		assert.GreaterOrEqual(t, cur.KWhDelivered, prev.KWhDelivered)
		assert.GreaterOrEqual(t, cur.ElapsedSeconds, prev.ElapsedSeconds)
		prev = cur
	}

	assert.Equal(t, models.StatusCompleted, prev.Status)
	assert.Equal(t, 10.0, prev.KWhDelivered)
	assert.Equal(t, 10800.0, prev.ElapsedSeconds)
	assert.Equal(t, 205.0, prev.CurrentCost)
	assert.NotNil(t, prev.EndedAt)

	records := h.ledger.List()
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Status)
	assert.Equal(t, "205.00", records[0].Amount.StringFixed(2))
	assert.Equal(t, []string{
		models.ActivitySessionStart,
		models.ActivityPaymentVerified,
		models.ActivitySessionComplete,
	}, h.activityKinds())

	// Completed sessions no longer accrue or accept mutations.
	h.clock.Advance(time.Minute)
	after, err := h.svc.PollStatus(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, prev, after)
	_, err = h.svc.StopSession(ctx, started.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	_, err = h.svc.VerifyPayment(ctx, started.ID, proof)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestStopFinalizesCost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := h.startCharging(t, "alice", "S1", 15)
	h.clock.Advance(7 * time.Second)

	polled, err := h.svc.PollStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, polled.KWhDelivered, 1e-9)

	stopped, err := h.svc.StopSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusStopped, stopped.Status)
	assert.InDelta(t, 3.0, stopped.KWhDelivered, 1e-9)
	assert.Equal(t, 61.5, stopped.CurrentCost)
	require.NotNil(t, stopped.EndedAt)

	h.clock.Advance(10 * time.Minute)
	later, err := h.svc.PollStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, stopped, later)

	_, err = h.svc.StopSession(ctx, s.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	records := h.ledger.List()
	require.Len(t, records, 1)
	assert.Equal(t, "stopped", records[0].Status)
	assert.Equal(t, "61.50", records[0].Amount.StringFixed(2))
}

func TestStopProjectsToNow(t *testing.T) {
	h := newHarness(t)
	s := h.startCharging(t, "alice", "S1", 15)

	// No poll in between: stopping still accounts for elapsed ticks.
	h.clock.Advance(7 * time.Second)
	stopped, err := h.svc.StopSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, stopped.KWhDelivered, 1e-9)
}

func TestStopAfterTargetReachedReturnsCompleted(t *testing.T) {
	h := newHarness(t)
	s := h.startCharging(t, "alice", "S1", 10)

	h.clock.Advance(time.Hour)
	out, err := h.svc.StopSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, out.Status)
	assert.Equal(t, 10.0, out.KWhDelivered)
	assert.Len(t, h.ledger.List(), 1)
}

func TestPollAwaitingPaymentIsUnchanged(t *testing.T) {
	h := newHarness(t)
	s, err := h.svc.StartSession(context.Background(), "alice", "S1", 10)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	polled, err := h.svc.PollStatus(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, polled)

	_, err = h.svc.StopSession(context.Background(), s.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
}

func TestStartSessionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		station string
		kwh     float64
		want    error
	}{
		{"zero kwh", "S1", 0, models.ErrValidation},
		{"negative kwh", "S1", -1, models.ErrValidation},
		{"unknown station", "nope", 10, models.ErrNotFound},
		{"unavailable station", "OFF", 10, models.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.StartSession(ctx, "alice", tc.station, tc.kwh)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	// Failed validation leaves no reservation behind.
	_, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	assert.NoError(t, err)
}

func TestOneLiveSessionPerOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.startCharging(t, "alice", "S1", 10)

	_, err := h.svc.StartSession(ctx, "alice", "S2", 5)
	assert.True(t, errors.Is(err, models.ErrInvalidState))

	_, err = h.svc.StartSession(ctx, "bob", "S1", 5)
	assert.NoError(t, err)

	active, ok := h.svc.ActiveSession("alice")
	require.True(t, ok)
	assert.Equal(t, first.ID, active.ID)

	_, err = h.svc.StopSession(ctx, first.ID)
	require.NoError(t, err)
	_, ok = h.svc.ActiveSession("alice")
	assert.False(t, ok)

	_, err = h.svc.StartSession(ctx, "alice", "S2", 5)
	assert.NoError(t, err)

	assert.Len(t, h.svc.ListSessions("alice"), 2)
	assert.Len(t, h.svc.ListSessions("bob"), 1)
	assert.Len(t, h.svc.ListSessions(""), 3)
}

func TestConcurrentStartsAllowOnlyOneLiveSession(t *testing.T) {
	h := newHarness(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.svc.StartSession(context.Background(), "alice", "S1", 10); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, success)
}

func TestVerifyAfterQuoteExpiryFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	out, err := h.svc.VerifyPayment(ctx, s.ID, proof)
	require.NoError(t, err)
	assert.False(t, out.Result.Verified)
	assert.Equal(t, models.StatusFailed, out.Session.Status)
	require.NotNil(t, out.Session.FailureReason)
	assert.Equal(t, "quote expired", *out.Session.FailureReason)

	_, err = h.svc.VerifyPayment(ctx, s.ID, proof)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	_, err = h.svc.StopSession(ctx, s.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	assert.Empty(t, h.ledger.List())
}

func TestStartExpiresStaleAwaitingSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	stale, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	require.NoError(t, err)

	_, err = h.svc.StartSession(ctx, "alice", "S1", 10)
	require.True(t, errors.Is(err, models.ErrInvalidState))

	h.clock.Advance(61 * time.Minute)
	fresh, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)

	old, err := h.svc.GetSession(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, old.Status)
}

type stubProvider struct {
	quoteErr error
	verdict  models.VerificationResult
	quotes   int
}

func (p *stubProvider) Quote(ctx context.Context, st models.Station, kwh float64) (models.PaymentQuote, error) {
	p.quotes++
	if p.quoteErr != nil {
		return models.PaymentQuote{}, p.quoteErr
	}
	return models.PaymentQuote{PaymentID: fmt.Sprintf("q-%d", p.quotes), Amount: payment.QuoteAmount(kwh, st.RateCryptoPerKWh)}, nil
}

func (p *stubProvider) Verify(ctx context.Context, sessionID string, q *models.PaymentQuote, proof json.RawMessage) models.VerificationResult {
	return p.verdict
}

func TestRejectedPaymentFailsSession(t *testing.T) {
	msg := "insufficient funds"
	stub := &stubProvider{verdict: models.VerificationResult{Verified: false, Error: &msg}}
	h := newHarness(t, func(d *Deps) { d.Payments = stub })
	ctx := context.Background()

	s, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	require.NoError(t, err)

	out, err := h.svc.VerifyPayment(ctx, s.ID, proof)
	require.NoError(t, err)
	assert.False(t, out.Result.Verified)
	assert.Equal(t, models.StatusFailed, out.Session.Status)
	assert.Nil(t, out.Session.TxHash)
	assert.Equal(t, msg, *out.Session.FailureReason)
	assert.Contains(t, h.activityKinds(), models.ActivityPaymentFailed)

	_, ok := h.svc.ActiveSession("alice")
	assert.False(t, ok)
	_, err = h.svc.StartSession(ctx, "alice", "S1", 10)
	assert.NoError(t, err)
}

func TestQuoteFailureReleasesOwner(t *testing.T) {
	stub := &stubProvider{quoteErr: fmt.Errorf("%w: backend down", models.ErrProviderUnavailable)}
	h := newHarness(t, func(d *Deps) { d.Payments = stub })
	ctx := context.Background()

	_, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	assert.True(t, errors.Is(err, models.ErrProviderUnavailable))
	assert.Empty(t, h.svc.ListSessions(""))

	stub.quoteErr = nil
	_, err = h.svc.StartSession(ctx, "alice", "S1", 10)
	assert.NoError(t, err)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.VerifyPayment(ctx, "missing", proof)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = h.svc.PollStatus(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = h.svc.StopSession(ctx, "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	_, err = h.svc.GetSession("missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(h.svc.Evict("missing"), models.ErrNotFound))
}

func TestEvict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := h.startCharging(t, "alice", "S1", 10)
	assert.True(t, errors.Is(h.svc.Evict(s.ID), models.ErrInvalidState))

	_, err := h.svc.StopSession(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, h.svc.Evict(s.ID))

	_, err = h.svc.GetSession(s.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.Empty(t, h.svc.ListSessions("alice"))
	assert.Contains(t, h.activityKinds(), models.ActivitySessionEvicted)
	// Settlement history survives eviction.
	assert.Len(t, h.ledger.List(), 1)
}

func TestConcurrentPollsKeepInvariants(t *testing.T) {
	h := newHarness(t)
	s := h.startCharging(t, "alice", "S1", 10)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last models.ChargingSession
			for j := 0; j < 60; j++ {
				cur, err := h.svc.PollStatus(context.Background(), s.ID)
				if !assert.NoError(t, err) {
					return
				}
				assert.GreaterOrEqual(t, cur.KWhDelivered, last.KWhDelivered)
				assert.LessOrEqual(t, cur.KWhDelivered, cur.RequestedKWh)
				last = cur
			}
		}()
	}
	for i := 0; i < 40; i++ {
		h.clock.Advance(time.Second)
	}
	wg.Wait()

	final, err := h.svc.PollStatus(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Len(t, h.ledger.List(), 1, "completion is recorded exactly once")
}

func TestSnapshotsAreIsolated(t *testing.T) {
	h := newHarness(t)
	s := h.startCharging(t, "alice", "S1", 10)

	*s.TxHash = "tampered"
	s.Quote.PaymentID = "tampered"

	got, err := h.svc.GetSession(s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", *got.TxHash)
	assert.NotEqual(t, "tampered", got.Quote.PaymentID)
}

func TestActiveCacheFollowsLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client, time.Hour)

	h := newHarness(t, func(d *Deps) { d.Cache = store })
	ctx := context.Background()

	s, err := h.svc.StartSession(ctx, "alice", "S1", 10)
	require.NoError(t, err)
	cached, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, s.ID, cached.SessionID)
	assert.Equal(t, "awaiting_payment", cached.Status)

	_, err = h.svc.VerifyPayment(ctx, s.ID, proof)
	require.NoError(t, err)
	cached, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "charging", cached.Status)

	_, err = h.svc.StopSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("sessions:active:alice"))
}

func TestCacheOutageDoesNotFailLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	h := newHarness(t, func(d *Deps) { d.Cache = redisstore.NewStore(client, time.Hour) })
	s := h.startCharging(t, "alice", "S1", 10)
	_, err := h.svc.StopSession(context.Background(), s.ID)
	assert.NoError(t, err)
}

// gatedCache holds the first charging Save until release is closed.
type gatedCache struct {
	*redisstore.Store
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedCache) Save(ctx context.Context, session redisstore.ActiveSession) error {
	select {
	case <-g.armed:
		if session.Status == string(models.StatusCharging) {
			g.once.Do(func() {
				close(g.entered)
				<-g.release
			})
		}
	default:
	}
	return g.Store.Save(ctx, session)
}

func TestActiveCacheNotResurrectedByConcurrentPoll(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client, time.Hour)
	cache := &gatedCache{
		Store:   store,
		armed:   make(chan struct{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	h := newHarness(t, func(d *Deps) { d.Cache = cache })
	ctx := context.Background()
	s := h.startCharging(t, "alice", "S1", 10)

	close(cache.armed)
	h.clock.Advance(2 * time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := h.svc.PollStatus(ctx, s.ID)
		assert.NoError(t, err)
	}()
	<-cache.entered

	stopped := make(chan models.ChargingSession, 1)
	go func() {
		defer wg.Done()
		out, err := h.svc.StopSession(ctx, s.ID)
		assert.NoError(t, err)
		stopped <- out
	}()

	// Give the stop a chance to run ahead of the held write.
	time.Sleep(50 * time.Millisecond)
	close(cache.release)
	wg.Wait()

	assert.Equal(t, models.StatusStopped, (<-stopped).Status)
	_, err := store.Get(ctx, "alice")
	assert.ErrorIs(t, err, redis.Nil)
}
