// Package app wires configuration into a running flipper: stores, the market
// source, the engine, the API server and the event fan-out.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/arbitrage"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/config"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/engine"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/executor"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/ledger"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/market"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/platform/hypixel"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/platform/paper"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/server"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/server/handler"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/server/ws"
)

// Run modes. Monitor scores opportunities without placing orders.
const (
	ModePaper   = "paper"
	ModeMonitor = "monitor"
)

// App owns the configuration, the logger and the cleanup funcs run on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App. Nothing is connected until Run.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Runtime is the assembled flipper.
type Runtime struct {
	Engine *engine.Engine
	Ledger *ledger.Ledger
	Venue  *paper.Venue
	Hub    *ws.Hub
}

// Build assembles the engine around source. deps supplies storage and
// event sinks.
func Build(cfg *config.Config, deps *Dependencies, source domain.MarketSource, logger *slog.Logger) *Runtime {
	mode := strings.ToLower(cfg.Mode)

	venue := paper.NewVenue(paper.Config{
		StartingPurse: cfg.Paper.StartingPurse,
		FillDelay:     cfg.Paper.FillDelay.Duration,
	}, logger)

	led := ledger.New(deps.KV, ledger.Config{Key: cfg.Store.Key}, logger)

	orders := executor.NewManager(executor.Config{
		MaxConcurrent: cfg.Engine.MaxConcurrentFlips,
		OrderTimeout:  cfg.Engine.OrderTimeout.Duration,
	}, venue, led, logger)

	scorer := arbitrage.NewScorer(arbitrage.ScorerConfig{
		FeeRate: cfg.Scoring.FeeRate,
		Thresholds: arbitrage.Thresholds{
			MinProfitPercent: cfg.Scoring.MinProfitPercentage,
			MinProfitAmount:  cfg.Scoring.MinProfitAmount,
			MinVolume:        cfg.Scoring.MinItemVolume,
			MaxItems:         cfg.Engine.MaxItems,
			MaxPerInstrument: cfg.Engine.MaxItemAmount,
		},
		GuardEnabled: cfg.Scoring.EnableManipulationProtection,
		MaxPriceGap:  cfg.Scoring.MaxPriceGap,
	}, logger)

	snapshots := market.NewSnapshotCache(source, market.CacheConfig{
		RefreshInterval: cfg.Engine.ScanInterval.Duration,
		FetchTimeout:    cfg.Bazaar.FetchTimeout.Duration,
	}, logger)

	// With a redis bus the hub follows the bus so every instance's dashboard
	// sees the same stream; otherwise the engine feeds it directly.
	var publishers []domain.EventPublisher
	var hubSource ws.EventSource
	if deps.Events != nil {
		publishers = append(publishers, deps.Events)
		hubSource = deps.Events
	}
	rt := &Runtime{Ledger: led, Venue: venue}
	if cfg.Server.Enabled {
		rt.Hub = ws.NewHub(hubSource, nil, logger)
		if deps.Events == nil {
			publishers = append(publishers, rt.Hub)
		}
	}
	if deps.Notifier != nil {
		publishers = append(publishers, deps.Notifier)
	}

	rt.Engine = engine.New(engine.Config{
		Mode:            mode,
		ScanInterval:    cfg.Engine.ScanInterval.Duration,
		CheckInterval:   cfg.Engine.CheckInterval.Duration,
		MaxConcurrent:   cfg.Engine.MaxConcurrentFlips,
		UseBudgetCheck:  cfg.Budget.UseBudgetCheck,
		MinPurseSafety:  cfg.Budget.MinPurseSafety,
		AdmitEnabled:    mode != ModeMonitor,
		AutoStart:       cfg.Engine.AutoStart,
		ShutdownTimeout: cfg.Engine.ShutdownTimeout.Duration,
	}, engine.Deps{
		Snapshots:  snapshots,
		Scorer:     scorer,
		Orders:     orders,
		Ledger:     led,
		Balance:    venue,
		History:    deps.History,
		Publishers: publishers,
	}, logger)

	if rt.Hub != nil {
		rt.Hub.SetStatus(func() any { return rt.Engine.Status() })
	}
	return rt
}

// Run wires everything, takes the engine lock when redis is enabled, and
// blocks until ctx is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("store", a.cfg.Store.Backend),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	if deps.Locks != nil {
		ttl := a.cfg.Redis.LockTTL.Duration
		key := a.cfg.Redis.KeyPrefix + "lock:engine"
		lock, err := deps.Locks.Acquire(ctx, key, ttl)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.closers = append(a.closers, func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil {
				a.logger.Warn("release engine lock", slog.String("error", err.Error()))
			}
		})
		g.Go(func() error { return keepLock(ctx, lock, ttl, a.logger) })
	}

	source := hypixel.NewClient(hypixel.ClientConfig{
		URL:       a.cfg.Bazaar.APIURL,
		APIKey:    a.cfg.Bazaar.APIKey,
		UserAgent: a.cfg.Bazaar.UserAgent,
		Timeout:   a.cfg.Bazaar.FetchTimeout.Duration,
	})
	rt := Build(a.cfg, deps, source, a.logger)

	if err := rt.Ledger.Load(ctx); err != nil {
		a.logger.WarnContext(ctx, "starting with an empty ledger", slog.String("error", err.Error()))
	}

	if deps.Notifier != nil {
		g.Go(func() error { return deps.Notifier.Run(ctx) })
	}
	g.Go(func() error { return rt.Engine.Run(ctx) })

	if rt.Hub != nil {
		g.Go(func() error { return rt.Hub.Run(ctx) })

		srv := server.NewServer(server.Config{
			Host:        a.cfg.Server.Host,
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health: handler.NewHealthHandler(a.cfg.Mode, time.Now()),
			Engine: handler.NewEngineHandler(rt.Engine, a.logger),
		}, rt.Hub, a.logger)
		g.Go(func() error { return srv.Run(ctx) })
	}

	return g.Wait()
}

// LoadStats reads the persisted ledger without starting the engine.
func LoadStats(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.LedgerStats, error) {
	deps, cleanup, err := Wire(ctx, cfg, logger)
	if err != nil {
		return domain.LedgerStats{}, fmt.Errorf("app: wire dependencies: %w", err)
	}
	defer cleanup()

	led := ledger.New(deps.KV, ledger.Config{Key: cfg.Store.Key}, logger)
	if err := led.Load(ctx); err != nil {
		return domain.LedgerStats{}, fmt.Errorf("app: load ledger: %w", err)
	}
	return led.Stats(), nil
}

// Close runs cleanup funcs in reverse order. Repeated calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
