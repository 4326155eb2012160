package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"chargex/backend/libs/clock"
	"chargex/backend/services/charging-service/internal/clients"
	"chargex/backend/services/charging-service/internal/models"
)

// Mode selects the settlement path. It is fixed at construction.
type Mode string

const (
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
)

const (
	defaultQuoteTTL    = time.Hour
	defaultCallTimeout = 5 * time.Second
	defaultRetryDelay  = 200 * time.Millisecond
	defaultMaxAttempts = MaxAttempts
)

// MaxAttempts caps live calls per operation: the first try plus one retry.
const MaxAttempts = 2

// Config describes provider behaviour.
type Config struct {
	Mode            Mode
	FallbackEnabled bool
	Network         string
	ChainID         int64
	Currency        string
	TokenContract   string
	QuoteTTL        time.Duration
	CallTimeout     time.Duration
	RetryDelay      time.Duration
	MaxAttempts     uint
}

// Settlement is the live settlement backend boundary.
type Settlement interface {
	Quote(ctx context.Context, req clients.SettlementQuoteRequest) (clients.SettlementQuoteResponse, error)
	Verify(ctx context.Context, req clients.SettlementVerifyRequest) (clients.SettlementVerifyResponse, error)
}

// Info describes the active provider for read endpoints.
type Info struct {
	Mode            Mode   `json:"mode"`
	FallbackEnabled bool   `json:"fallback_enabled"`
	Network         string `json:"network"`
	ChainID         int64  `json:"chain_id"`
	Currency        string `json:"currency"`
	TokenContract   string `json:"token_contract,omitempty"`
}

// Provider quotes and verifies payments in live or simulated mode.
type Provider struct {
	cfg    Config
	live   Settlement
	sim    *Simulator
	clock  clock.Clock
	logger *zap.Logger
}

// NewProvider builds a provider. Live mode without a settlement backend is forced to simulated.
func NewProvider(cfg Config, live Settlement, clk clock.Clock, logger *zap.Logger) *Provider {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = defaultQuoteTTL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.MaxAttempts > MaxAttempts {
		logger.Warn("payment max attempts capped", zap.Uint("configured", cfg.MaxAttempts), zap.Uint("max", MaxAttempts))
		cfg.MaxAttempts = MaxAttempts
	}
	if cfg.Mode != ModeLive {
		cfg.Mode = ModeSimulated
	}
	if cfg.Mode == ModeLive && live == nil {
		logger.Warn("live payment mode without settlement backend, using simulated mode")
		cfg.Mode = ModeSimulated
	}
	if cfg.Mode == ModeSimulated {
		live = nil
	}
	return &Provider{
		cfg:    cfg,
		live:   live,
		sim:    NewSimulator(cfg, clk),
		clock:  clk,
		logger: logger,
	}
}

// Mode returns the mode chosen at construction.
func (p *Provider) Mode() Mode {
	return p.cfg.Mode
}

// Info returns network details of the provider.
func (p *Provider) Info() Info {
	return Info{
		Mode:            p.cfg.Mode,
		FallbackEnabled: p.cfg.FallbackEnabled,
		Network:         p.cfg.Network,
		ChainID:         p.cfg.ChainID,
		Currency:        p.cfg.Currency,
		TokenContract:   p.cfg.TokenContract,
	}
}

// QuoteAmount is kwh * rate rounded to cents.
func QuoteAmount(kwh, rate float64) decimal.Decimal {
	return decimal.NewFromFloat(kwh).Mul(decimal.NewFromFloat(rate)).Round(2)
}

// Quote computes the payment requirement for kwh at station.
func (p *Provider) Quote(ctx context.Context, station models.Station, kwh float64) (models.PaymentQuote, error) {
	if kwh <= 0 {
		return models.PaymentQuote{}, fmt.Errorf("%w: kwh amount must be positive", models.ErrValidation)
	}
	amount := QuoteAmount(kwh, station.RateCryptoPerKWh)

	if p.live == nil {
		return p.sim.Quote(station.ID, amount), nil
	}

	req := clients.SettlementQuoteRequest{
		StationID: station.ID,
		KWhAmount: kwh,
		Amount:    amount.StringFixed(2),
		Currency:  p.cfg.Currency,
		Network:   p.cfg.Network,
		Token:     p.cfg.TokenContract,
	}
	resp, err := retry(ctx, p.cfg, func(ctx context.Context) (clients.SettlementQuoteResponse, error) {
		resp, err := p.live.Quote(ctx, req)
		if err == nil && strings.TrimSpace(resp.Recipient) == "" {
			err = errors.New("settlement quote without recipient")
		}
		return resp, err
	})
	if err != nil {
		if p.cfg.FallbackEnabled {
			p.logger.Warn("live quote failed, using simulated quote", zap.String("station_id", station.ID), zap.Error(err))
			return p.sim.Quote(station.ID, amount), nil
		}
		return models.PaymentQuote{}, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	quote := models.PaymentQuote{
		PaymentID:        resp.PaymentID,
		Amount:           amount,
		Currency:         p.cfg.Currency,
		RecipientAddress: resp.Recipient,
		NetworkID:        resp.Network,
		ExpiresAt:        resp.ExpiresAt,
	}
	if quote.PaymentID == "" {
		quote.PaymentID = p.sim.Quote(station.ID, amount).PaymentID
	}
	if quote.NetworkID == "" {
		quote.NetworkID = p.cfg.Network
	}
	if quote.ExpiresAt.IsZero() {
		quote.ExpiresAt = p.clock.Now().Add(p.cfg.QuoteTTL)
	}
	return quote, nil
}

// Verify checks a proof for sessionID. A failure to reach any verdict is reported as
// verified=false with the error; it is never reported as verified.
func (p *Provider) Verify(ctx context.Context, sessionID string, quote *models.PaymentQuote, proof json.RawMessage) models.VerificationResult {
	if p.live == nil {
		return p.sim.Verify(sessionID)
	}

	req := clients.SettlementVerifyRequest{SessionID: sessionID, Proof: proof}
	if quote != nil {
		req.PaymentID = quote.PaymentID
	}
	if len(req.Proof) == 0 {
		req.Proof = nil
	}
	resp, err := retry(ctx, p.cfg, func(ctx context.Context) (clients.SettlementVerifyResponse, error) {
		resp, err := p.live.Verify(ctx, req)
		if err == nil && resp.Verified && strings.TrimSpace(resp.TxHash) == "" {
			err = errors.New("settlement verdict without tx hash")
		}
		return resp, err
	})
	if err != nil {
		if p.cfg.FallbackEnabled {
			p.logger.Warn("live verification failed, using simulated verification", zap.String("session_id", sessionID), zap.Error(err))
			return p.sim.Verify(sessionID)
		}
		msg := err.Error()
		return models.VerificationResult{Verified: false, Error: &msg}
	}

	if !resp.Verified {
		msg := resp.Error
		if msg == "" {
			msg = "payment rejected"
		}
		return models.VerificationResult{Verified: false, Error: &msg}
	}
	hash := resp.TxHash
	return models.VerificationResult{Verified: true, TxHash: &hash}
}

// retry runs op up to MaxAttempts times, each attempt under its own timeout.
func retry[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()
		return op(attemptCtx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(cfg.RetryDelay)),
		backoff.WithMaxTries(cfg.MaxAttempts),
	)
}
