package app

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargex/backend/libs/clock"
	libdb "chargex/backend/libs/db"
	libredis "chargex/backend/libs/redis"
	"chargex/backend/libs/spool"
	"chargex/backend/services/charging-service/internal/activity"
	"chargex/backend/services/charging-service/internal/advisor"
	"chargex/backend/services/charging-service/internal/billing"
	"chargex/backend/services/charging-service/internal/catalog"
	"chargex/backend/services/charging-service/internal/clients"
	"chargex/backend/services/charging-service/internal/config"
	httpserver "chargex/backend/services/charging-service/internal/http"
	"chargex/backend/services/charging-service/internal/http/handlers"
	"chargex/backend/services/charging-service/internal/http/middleware"
	"chargex/backend/services/charging-service/internal/models"
	"chargex/backend/services/charging-service/internal/payment"
	redisstore "chargex/backend/services/charging-service/internal/redis"
	"chargex/backend/services/charging-service/internal/repository"
	"chargex/backend/services/charging-service/internal/service"
)

const (
	spoolBuffer    = 512
	settlementTTL  = time.Minute
	migrateTimeout = 30 * time.Second
)

// App wires charging-service dependencies.
type App struct {
	server          *httpserver.Server
	handler         http.Handler
	db              *sql.DB
	redisClient     *redis.Client
	activitySpool   *spool.Spool[models.ActivityLogEntry]
	settlementSpool *spool.Spool[models.SettlementRecord]
	logger          *zap.Logger
}

// Option customises App construction.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New constructs the application graph. Postgres and Redis are optional: an empty
// DSN or address disables them, an unreachable configured backend is an error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{logger: logger}

	sqlDB, err := libdb.NewPostgresDB(ctx, cfg.Database.DSN)
	switch {
	case errors.Is(err, libdb.ErrDisabled):
		logger.Info("postgres disabled, audit mirror off")
	case err != nil:
		return nil, err
	default:
		a.db = sqlDB
		migrateCtx, cancel := context.WithTimeout(ctx, migrateTimeout)
		err = repository.Migrate(migrateCtx, sqlDB)
		cancel()
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	redisClient, err := libredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	switch {
	case errors.Is(err, libredis.ErrDisabled):
		logger.Info("redis disabled, active session cache off")
	case err != nil:
		a.Close()
		return nil, err
	default:
		a.redisClient = redisClient
	}

	stations, err := catalog.Load(cfg.Catalog.Path, cfg.Charging.DefaultRate)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		activityMirror    activity.Mirror
		ledgerMirror      billing.Mirror
		settlementArchive handlers.SettlementArchive
		activityArchive   http.HandlerFunc
	)
	if a.db != nil {
		activityRepo := repository.NewActivityRepository(a.db)
		settlementRepo := repository.NewSettlementRepository(a.db)
		a.activitySpool = spool.New[models.ActivityLogEntry]("activity_log", spoolBuffer, activityRepo.Save, logger)
		a.settlementSpool = spool.New[models.SettlementRecord]("settlement_records", spoolBuffer, settlementRepo.Save, logger)
		activityMirror = a.activitySpool
		ledgerMirror = a.settlementSpool
		settlementArchive = settlementRepo
		activityArchive = handlers.NewActivityArchiveHandler(activityRepo, logger)
	}
	activityLog := activity.NewLog(o.clock, activityMirror)
	ledger := billing.NewLedger(cfg.Charging.Currency, o.clock, ledgerMirror)

	provider := newPaymentProvider(cfg, o.clock, logger)

	var cache service.ActiveCache
	if a.redisClient != nil {
		cache = redisstore.NewStore(a.redisClient, cfg.ActiveSessionTTL())
	}

	sessionsService := service.NewSessionsService(service.Deps{
		Stations: stations,
		Payments: provider,
		Activity: activityLog,
		Ledger:   ledger,
		Cache:    cache,
		Clock:    o.clock,
		Logger:   logger.Named("sessions"),
	}, service.ProgressModel{
		FullChargeSeconds:    float64(cfg.Charging.FullChargeDurationSeconds),
		TickSeconds:          float64(cfg.Charging.TickSeconds),
		TickInterval:         cfg.TickInterval(),
		InitialCreditSeconds: float64(cfg.Charging.InitialCreditSeconds),
	})

	var remote advisor.Remote
	if cfg.Advisor.URL != "" {
		remote = clients.NewAdvisorClient(cfg.Advisor.URL, cfg.Advisor.APIKey, clients.NewDefaultHTTPClient(cfg.AdvisorTimeout()))
	}
	adv := advisor.New(remote, stations, logger.Named("advisor"))

	stationsHandler := handlers.NewStationsHandler(stations)
	sessionsHandler := handlers.NewSessionsHandler(sessionsService, logger)
	adviceHandler := handlers.NewAdviceHandler(adv, sessionsService, stations, activityLog, logger)
	watchHandler := handlers.NewWatchHandler(sessionsService, cfg.WatchInterval(), logger)

	routes := httpserver.Routes{
		Health:          handlers.NewHealthHandler(provider),
		Stations:        stationsHandler.List,
		Station:         stationsHandler.Get,
		SessionStart:    sessionsHandler.Start,
		Sessions:        sessionsHandler.List,
		Session:         sessionsHandler.Get,
		SessionActive:   sessionsHandler.Active,
		SessionPayment:  sessionsHandler.Pay,
		SessionStop:     sessionsHandler.Stop,
		SessionEvict:    sessionsHandler.Evict,
		SessionWatch:    watchHandler.Watch,
		SessionAdvice:   adviceHandler.SessionAdvice,
		Settlements:     handlers.NewSettlementsHandler(sessionsService, ledger, settlementArchive, logger),
		Recommendation:  adviceHandler.Recommend,
		Payments:        handlers.NewPaymentsHandler(ledger, provider),
		Activity:        handlers.NewActivityHandler(activityLog),
		ActivityArchive: activityArchive,
	}

	a.handler = middleware.Chain(httpserver.NewRouter(routes),
		middleware.Recovery(logger),
		middleware.AccessLog(logger),
		middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	)
	a.server = httpserver.NewServer(cfg.HTTPAddress(), a.handler, logger)

	logger.Info("charging service configured",
		zap.String("payment_mode", string(provider.Mode())),
		zap.Bool("fallback_enabled", cfg.Payment.FallbackEnabled),
		zap.Int("stations", len(stations.List())),
		zap.Bool("postgres", a.db != nil),
		zap.Bool("redis", a.redisClient != nil),
	)
	return a, nil
}

func newPaymentProvider(cfg *config.Config, clk clock.Clock, logger *zap.Logger) *payment.Provider {
	mode, reason := cfg.EffectivePaymentMode()
	if reason != "" {
		logger.Warn("live payment mode unavailable, using simulated mode", zap.String("reason", reason))
	}

	var live payment.Settlement
	if mode == config.PaymentModeLive {
		live = clients.NewSettlementClient(
			cfg.Payment.SettlementURL,
			clients.NewDefaultHTTPClient(cfg.PaymentTimeout()),
			clients.NewTokenSigner(cfg.Payment.APIKey, cfg.Payment.APISecret, settlementTTL),
		)
	}

	return payment.NewProvider(payment.Config{
		Mode:            payment.Mode(mode),
		FallbackEnabled: cfg.Payment.FallbackEnabled,
		Network:         cfg.Payment.Network,
		ChainID:         cfg.Payment.ChainID,
		Currency:        cfg.Payment.Currency,
		TokenContract:   cfg.Payment.TokenContract,
		QuoteTTL:        cfg.QuoteTTL(),
		CallTimeout:     cfg.PaymentTimeout(),
		MaxAttempts:     cfg.Payment.MaxAttempts,
	}, live, clk, logger.Named("payment"))
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run starts background writers and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, func(ctx context.Context) error { return a.server.Run(ctx) })
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	return a.run(ctx, func(ctx context.Context) error { return a.server.Serve(ctx, ln) })
}

func (a *App) run(ctx context.Context, serve func(context.Context) error) error {
	spoolCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.activitySpool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.activitySpool.Run(spoolCtx)
		}()
	}
	if a.settlementSpool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.settlementSpool.Run(spoolCtx)
		}()
	}

	err := serve(ctx)
	cancel()
	wg.Wait()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
