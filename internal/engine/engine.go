// Package engine runs the flip loop: on every scan it scores the latest
// snapshot and admits what the budget and concurrency cap allow, and on a
// faster cadence it advances in-flight orders.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/arbitrage"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/executor"
)

// Snapshotter returns the current market snapshot.
type Snapshotter interface {
	Get(ctx context.Context) (domain.Snapshot, error)
}

// Scorer ranks a snapshot's opportunities.
type Scorer interface {
	Score(ctx context.Context, snap domain.Snapshot) []domain.Opportunity
}

// OrderBook is the lifecycle manager surface the engine drives.
type OrderBook interface {
	Admit(opp domain.Opportunity) (domain.Order, error)
	Active() []domain.Order
	Count() int
	Check(ctx context.Context) []executor.Transition
	Abandon() []domain.Order
}

// Ledger is the profit ledger surface the engine needs.
type Ledger interface {
	Save(ctx context.Context) error
	Stats() domain.LedgerStats
	ResetSession()
}

// Config configures an Engine.
type Config struct {
	// Mode is reported by Status.
	Mode           string
	ScanInterval   time.Duration
	CheckInterval  time.Duration
	MaxConcurrent  int
	UseBudgetCheck bool
	MinPurseSafety float64
	// AdmitEnabled false scans and scores without admitting anything.
	AdmitEnabled bool
	// AutoStart starts scanning as soon as Run is called.
	AutoStart bool
	// ShutdownTimeout bounds the final ledger save.
	ShutdownTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Deps groups the engine's collaborators. History and Publishers are
// optional.
type Deps struct {
	Snapshots  Snapshotter
	Scorer     Scorer
	Orders     OrderBook
	Ledger     Ledger
	Balance    domain.BalanceSource
	History    domain.FlipHistory
	Publishers []domain.EventPublisher
}

// TickResult summarizes one scan.
type TickResult struct {
	Scored        int
	Admitted      int
	SkippedBudget int
	Stale         bool
}

// Status is a point-in-time view of the engine.
type Status struct {
	Mode          string         `json:"mode"`
	Running       bool           `json:"running"`
	AdmitEnabled  bool           `json:"admit_enabled"`
	ActiveOrders  int            `json:"active_orders"`
	MaxConcurrent int            `json:"max_concurrent"`
	Balance       float64        `json:"balance"`
	SafetyReserve float64        `json:"safety_reserve"`
	Reserved      float64        `json:"reserved"`
	Available     float64        `json:"available"`
	LastTick      time.Time      `json:"last_tick"`
	Orders        []domain.Order `json:"orders"`
}

// Engine owns the scan and lifecycle schedules. Start and Stop control
// scanning only; the lifecycle check keeps running for as long as Run does,
// so orders admitted before a Stop still complete or time out.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu          sync.Mutex
	baseCtx     context.Context
	running     bool
	stopScan    context.CancelFunc
	scanDone    chan struct{}
	lastBalance float64
	lastTick    time.Time
	lastOpps    []domain.Opportunity
}

// New creates an Engine.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "engine")),
	}
}

// Run drives the lifecycle check until ctx is cancelled, then stops scanning
// and saves the ledger before returning ctx.Err().
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	if e.cfg.AutoStart {
		if err := e.Start(ctx); err != nil {
			e.logger.WarnContext(ctx, "auto start refused", slog.String("error", err.Error()))
		}
	}

	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.shutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			e.CheckOrders(ctx)
		}
	}
}

// Start begins scanning. It refuses when already running, or when the
// budget check is on and the purse does not exceed the safety reserve.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return domain.ErrEngineRunning
	}
	e.mu.Unlock()

	if e.cfg.UseBudgetCheck && e.cfg.AdmitEnabled {
		if balance := e.refreshBalance(ctx); balance <= e.cfg.MinPurseSafety {
			return fmt.Errorf("engine: start with purse %.0f, reserve %.0f: %w",
				balance, e.cfg.MinPurseSafety, domain.ErrPurseTooLow)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return domain.ErrEngineRunning
	}
	parent := e.baseCtx
	if parent == nil {
		parent = context.WithoutCancel(ctx)
	}
	scanCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	e.running = true
	e.stopScan = cancel
	e.scanDone = done

	go func() {
		defer close(done)
		e.scanLoop(scanCtx)
	}()

	e.logger.InfoContext(ctx, "engine started",
		slog.Duration("scan_interval", e.cfg.ScanInterval),
		slog.Bool("admit_enabled", e.cfg.AdmitEnabled),
	)
	e.publish(ctx, domain.Event{Kind: domain.EventEngineStarted, At: e.cfg.Now()})
	return nil
}

// Stop cancels scanning and waits for an in-progress scan to finish. No
// order is admitted once Stop returns. Active orders are left alone.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return domain.ErrEngineStopped
	}
	e.running = false
	cancel, done := e.stopScan, e.scanDone
	e.stopScan, e.scanDone = nil, nil
	e.mu.Unlock()

	cancel()
	<-done

	e.logger.InfoContext(ctx, "engine stopped",
		slog.Int("active_orders", e.deps.Orders.Count()),
	)
	e.publish(ctx, domain.Event{Kind: domain.EventEngineStopped, At: e.cfg.Now()})
	return nil
}

// Running reports whether the engine is scanning.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) scanLoop(ctx context.Context) {
	e.Tick(ctx)

	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one scan: fetch, score, then admit in ranked order while the
// engine is running.
func (e *Engine) Tick(ctx context.Context) TickResult {
	var res TickResult

	snap, err := e.deps.Snapshots.Get(ctx)
	if err != nil {
		res.Stale = true
		e.logger.WarnContext(ctx, "snapshot refresh failed, using previous snapshot",
			slog.Int("quotes", len(snap.Quotes)),
			slog.String("error", err.Error()),
		)
	}

	opps := e.deps.Scorer.Score(ctx, snap)
	res.Scored = len(opps)

	e.mu.Lock()
	e.lastOpps = opps
	e.lastTick = e.cfg.Now()
	admit := e.running && e.cfg.AdmitEnabled
	e.mu.Unlock()

	if !admit || len(opps) == 0 {
		return res
	}

	balance := e.refreshBalance(ctx)
	for _, opp := range opps {
		if ctx.Err() != nil {
			break
		}
		if e.deps.Orders.Count() >= e.cfg.MaxConcurrent {
			break
		}
		cost := opp.TotalCost()
		if e.cfg.UseBudgetCheck && !arbitrage.CanAfford(cost, balance, e.cfg.MinPurseSafety, e.deps.Orders.Active()) {
			res.SkippedBudget++
			e.logger.DebugContext(ctx, "skip: insufficient budget",
				slog.String("instrument", opp.InstrumentID),
				slog.Float64("cost", cost),
			)
			continue
		}

		order, err := e.deps.Orders.Admit(opp)
		if errors.Is(err, domain.ErrConcurrencyCap) {
			break
		}
		if err != nil {
			e.logger.WarnContext(ctx, "admit failed",
				slog.String("instrument", opp.InstrumentID),
				slog.String("error", err.Error()),
			)
			continue
		}
		res.Admitted++
		e.logger.InfoContext(ctx, "order admitted",
			slog.String("order_id", order.ID),
			slog.String("instrument", order.InstrumentID),
			slog.Int("quantity", order.Quantity),
			slog.Float64("total_cost", order.TotalCost),
			slog.Float64("profit_percent", order.ProfitPercent),
		)
		e.publish(ctx, domain.Event{Kind: domain.EventOrderAdmitted, Order: &order, At: e.cfg.Now()})
	}

	if res.Admitted > 0 || res.SkippedBudget > 0 {
		e.logger.InfoContext(ctx, "scan complete",
			slog.Int("scored", res.Scored),
			slog.Int("admitted", res.Admitted),
			slog.Int("skipped_budget", res.SkippedBudget),
			slog.Int("active_orders", e.deps.Orders.Count()),
		)
	}
	return res
}

// CheckOrders advances every active order once and fans out the resulting
// events.
func (e *Engine) CheckOrders(ctx context.Context) []executor.Transition {
	transitions := e.deps.Orders.Check(ctx)
	for _, t := range transitions {
		order := t.Order
		if t.Kind == domain.EventFlipCompleted && e.deps.History != nil {
			flip := domain.CompletedFlip{
				OrderID:      order.ID,
				InstrumentID: order.InstrumentID,
				Quantity:     order.Quantity,
				BuyPrice:     order.BuyPrice,
				SellPrice:    order.SellPrice,
				TotalCost:    order.TotalCost,
				Profit:       t.Profit,
				CompletedAt:  e.cfg.Now(),
			}
			if err := e.deps.History.InsertFlip(ctx, flip); err != nil {
				e.logger.ErrorContext(ctx, "flip history insert failed",
					slog.String("order_id", order.ID),
					slog.String("error", err.Error()),
				)
			}
		}
		e.publish(ctx, domain.Event{Kind: t.Kind, Order: &order, Profit: t.Profit, At: e.cfg.Now()})
	}
	return transitions
}

// Status reports the engine state and the purse view.
func (e *Engine) Status() Status {
	orders := e.deps.Orders.Active()
	e.mu.Lock()
	defer e.mu.Unlock()
	reserved := arbitrage.ReservedFunds(orders)
	return Status{
		Mode:          e.cfg.Mode,
		Running:       e.running,
		AdmitEnabled:  e.cfg.AdmitEnabled,
		ActiveOrders:  len(orders),
		MaxConcurrent: e.cfg.MaxConcurrent,
		Balance:       e.lastBalance,
		SafetyReserve: e.cfg.MinPurseSafety,
		Reserved:      reserved,
		Available:     e.lastBalance - e.cfg.MinPurseSafety - reserved,
		LastTick:      e.lastTick,
		Orders:        orders,
	}
}

// Opportunities returns the list scored by the latest tick.
func (e *Engine) Opportunities() []domain.Opportunity {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Opportunity, len(e.lastOpps))
	copy(out, e.lastOpps)
	return out
}

// Stats returns the ledger figures.
func (e *Engine) Stats() domain.LedgerStats {
	return e.deps.Ledger.Stats()
}

// ResetSession zeroes the ledger's session profit.
func (e *Engine) ResetSession() {
	e.deps.Ledger.ResetSession()
}

// RecentFlips lists completed flips, newest first. It returns nil when no
// history store is configured.
func (e *Engine) RecentFlips(ctx context.Context, limit int) ([]domain.CompletedFlip, error) {
	if e.deps.History == nil {
		return nil, nil
	}
	return e.deps.History.RecentFlips(ctx, limit)
}

// refreshBalance fetches the balance, treating any failure as zero so that
// nothing is admitted on an unknown purse.
func (e *Engine) refreshBalance(ctx context.Context) float64 {
	balance, err := e.deps.Balance.Balance(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "balance unavailable, blocking admissions",
			slog.String("error", err.Error()),
		)
		balance = 0
	}
	e.mu.Lock()
	e.lastBalance = balance
	e.mu.Unlock()
	return balance
}

func (e *Engine) shutdown(ctx context.Context) {
	if e.Running() {
		if err := e.Stop(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, domain.ErrEngineStopped) {
			e.logger.WarnContext(ctx, "stop during shutdown", slog.String("error", err.Error()))
		}
	}

	if abandoned := e.deps.Orders.Abandon(); len(abandoned) > 0 {
		e.logger.WarnContext(ctx, "abandoning in-flight orders",
			slog.Int("count", len(abandoned)),
			slog.Float64("reserved", arbitrage.ReservedFunds(abandoned)),
		)
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.deps.Ledger.Save(saveCtx); err != nil {
		e.logger.ErrorContext(ctx, "final ledger save failed", slog.String("error", err.Error()))
		return
	}
	e.logger.InfoContext(ctx, "ledger saved on shutdown")
}

func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	for _, p := range e.deps.Publishers {
		if err := p.PublishEvent(ctx, ev); err != nil {
			e.logger.DebugContext(ctx, "event publish failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}
