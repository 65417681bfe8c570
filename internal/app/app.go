// Package app wires the module's components into a running instance.
// Grounded on the teacher's root main.go, which does the same
// config-load-then-construct-everything sequence; split out as its own
// package so cmd/server and cmd/monitor can each take the pieces they
// need without duplicating the wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"binance-trading-bot/internal/circuit"
	"binance-trading-bot/internal/collector"
	"binance-trading-bot/internal/config"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/marketcache"
	"binance-trading-bot/internal/monitor"
	"binance-trading-bot/internal/notification"
	"binance-trading-bot/internal/notifygate"
	"binance-trading-bot/internal/paper"
	"binance-trading-bot/internal/ratelimit"
	"binance-trading-bot/internal/screener"
	"binance-trading-bot/internal/store"
	"binance-trading-bot/internal/tsdb"
)

// App holds every constructed component, ready for a cmd/ entrypoint to
// drive however it needs.
type App struct {
	Config      *config.Config
	Logger      *logging.Logger
	Public      *exchange.PublicClient
	Auth        *exchange.AuthClient
	Cache       *marketcache.Cache
	TSDB        *tsdb.DB
	Candles     *tsdb.Store
	StoreDB     *store.DB
	Repo        *store.Repository
	Collector   *collector.Collector
	Screener    *screener.Screener
	PaperEngine *paper.Engine
	NotifyGate  *notifygate.Gate
	Notifier    *notification.Manager
	Events      *events.Bus
	Monitor     *monitor.Monitor
}

// Build constructs every component from cfg, running both stores'
// migrations before returning.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(&logging.Config{
		Level: cfg.Logging.Level, Output: cfg.Logging.Output,
		JSONFormat: cfg.Logging.JSONFormat, IncludeFile: cfg.Logging.IncludeFile, Component: "core",
	})

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	}
	cache := marketcache.New(redisClient)

	limiter := ratelimit.New(cfg.Exchange.MinCallSpacing)
	breaker := circuit.New(circuit.DefaultConfig())
	public := exchange.NewPublicClient(cfg.Exchange.BaseURL, cfg.Exchange.RequestTimeout, limiter, breaker, cache)

	keys, err := exchange.NewCredentialStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("building credential store: %w", err)
	}
	auth := exchange.NewAuthClient(cfg.Exchange.BaseURL, keys, public)

	tsdbConn, err := tsdb.Connect(ctx, cfg.Database.TSDBURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting tsdb: %w", err)
	}
	if err := tsdbConn.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating tsdb: %w", err)
	}
	candles := tsdb.NewStore(tsdbConn, public, 0) // 0 selects the default minimum of 50 stored candles

	storeDB, err := store.Connect(ctx, cfg.Database.RelationalURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting relational store: %w", err)
	}
	if err := storeDB.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating relational store: %w", err)
	}
	repo := store.NewRepository(storeDB)

	coll := collector.New(public, candles, collector.Config{
		BatchSize: cfg.Collector.BatchSize, InterSymbolSleep: cfg.Collector.InterSymbolSleep,
		InterBatchSleep: cfg.Collector.InterBatchSleep, InterCycleSleep: cfg.Collector.InterCycleSleep,
		RateLimitSleep: cfg.Collector.RateLimitSleep, CandlesPerFetch: cfg.Collector.CandlesPerFetch,
		StopJoinTimeout: cfg.Collector.StopJoinTimeout,
	}, logger)

	scr := screener.New(public, candles, screener.Config{
		WorkerCount: cfg.Screener.WorkerCount, PassTimeout: cfg.Screener.PassTimeout,
		CandlesPerSymbol: cfg.Screener.CandlesPerSymbol, StaleAfter: cfg.Screener.StaleAfter,
		BetaRejectBelow: cfg.Screener.BetaRejectBelow, TotalRejectBelow: cfg.Screener.TotalRejectBelow,
	}, logger)

	if err := repo.SeedNotificationSettings(ctx, &store.NotificationSettings{
		MinIntervalMinutes: cfg.NotifyGate.MinIntervalMinutes, DailyLimit: cfg.NotifyGate.DailyLimit,
		MinScoreThreshold: cfg.NotifyGate.MinScoreThreshold, NotifyTopN: cfg.NotifyGate.NotifyTopN,
		QuietHourStart: cfg.NotifyGate.QuietHourStart, QuietHourEnd: cfg.NotifyGate.QuietHourEnd,
		Timezone: cfg.Paper.OperatorTimezone,
	}); err != nil {
		return nil, fmt.Errorf("seeding notification settings: %w", err)
	}

	engine := paper.New(repo, logger)
	gate := notifygate.New(repo)

	notifier := notification.NewManager()
	notifier.AddNotifier(notification.NewLogNotifier(logger))
	bus := events.NewBus()

	// The config counts the sweep period in days; the monitor counts cycles.
	sweepEvery := cfg.Monitor.RetentionSweepEvery
	if cfg.Thresholds.UpdateInterval > 0 {
		cyclesPerDay := int(24 * time.Hour / cfg.Thresholds.UpdateInterval)
		if cyclesPerDay < 1 {
			cyclesPerDay = 1
		}
		sweepEvery *= cyclesPerDay
	}

	mon := monitor.New(monitor.Config{
		Interval:             cfg.Thresholds.UpdateInterval,
		Timeframes:           cfg.Monitor.Timeframes,
		RetentionSweepEvery:  sweepEvery,
		CandleRetention:      cfg.Monitor.CandleRetention,
		SnapshotRetention:    cfg.Monitor.SnapshotRetention,
		PreferredWindowBonus: cfg.Paper.PreferredWindowBonus,
		PreferredWindowStart: cfg.Monitor.PreferredWindowStart,
		PreferredWindowEnd:   cfg.Monitor.PreferredWindowEnd,
	}, scr, candles, repo, gate, engine, notifier, bus, logger)

	return &App{
		Config: cfg, Logger: logger, Public: public, Auth: auth, Cache: cache,
		TSDB: tsdbConn, Candles: candles, StoreDB: storeDB, Repo: repo,
		Collector: coll, Screener: scr, PaperEngine: engine, NotifyGate: gate,
		Notifier: notifier, Events: bus, Monitor: mon,
	}, nil
}

// Close releases every connection App holds.
func (a *App) Close() {
	a.TSDB.Close()
	a.StoreDB.Close()
}
