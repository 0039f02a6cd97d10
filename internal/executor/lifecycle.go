// Package executor owns in-flight orders and drives each one from buy to sell
// to completion, expiring orders that sit in one state for too long.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// Config configures a Manager.
type Config struct {
	MaxConcurrent int
	OrderTimeout  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// ProfitRecorder receives every completed order with its realized profit.
type ProfitRecorder interface {
	Record(ctx context.Context, order domain.Order, profit float64)
}

// forgetter is implemented by venues that keep per-order bookkeeping.
type forgetter interface {
	Forget(orderID string)
}

// Transition describes one state change produced by Check. Kind is one of
// EventBuyFilled, EventFlipCompleted or EventOrderExpired. Order is the
// order as it was after the change, or as it was when it was removed.
type Transition struct {
	Kind   domain.EventKind
	Order  domain.Order
	Profit float64
}

// Manager holds the active order set. All methods are safe for concurrent
// use; Check calls are serialized.
type Manager struct {
	cfg      Config
	oracle   domain.FillOracle
	recorder ProfitRecorder
	logger   *slog.Logger

	checkMu sync.Mutex

	mu     sync.Mutex
	orders []*domain.Order
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, oracle domain.FillOracle, recorder ProfitRecorder, logger *slog.Logger) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		cfg:      cfg,
		oracle:   oracle,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "lifecycle")),
	}
}

// Admit turns opp into a Buying order. It fails with ErrConcurrencyCap when
// the manager already holds MaxConcurrent orders.
func (m *Manager) Admit(opp domain.Opportunity) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.orders) >= m.cfg.MaxConcurrent {
		return domain.Order{}, fmt.Errorf("executor: admit %s: %w", opp.InstrumentID, domain.ErrConcurrencyCap)
	}

	now := m.cfg.Now()
	o := &domain.Order{
		ID:             uuid.NewString(),
		InstrumentID:   opp.InstrumentID,
		BuyPrice:       opp.BuyPrice,
		SellPrice:      opp.SellPrice,
		Quantity:       opp.Quantity,
		TotalCost:      opp.TotalCost(),
		ProfitPercent:  opp.ProfitPercent,
		State:          domain.OrderStateBuying,
		EnteredStateAt: now,
		CreatedAt:      now,
	}
	m.orders = append(m.orders, o)
	return *o, nil
}

// Active returns a copy of every managed order in admission order.
func (m *Manager) Active() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, len(m.orders))
	for i, o := range m.orders {
		out[i] = *o
	}
	return out
}

// Count returns the number of managed orders.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Abandon drops every managed order without completing it and returns them.
func (m *Manager) Abandon() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, len(m.orders))
	for i, o := range m.orders {
		out[i] = *o
	}
	m.orders = nil
	return out
}

// Check evaluates each managed order once: expired orders are removed, and
// orders whose current side the oracle reports filled move on. Orders are
// snapshotted first and each change is applied by ID right after its
// evaluation, so removing one order never causes a neighbour to be skipped
// or seen twice, and a filled buy stops counting as reserved as soon as the
// venue has charged for it. Orders admitted while Check runs are left for
// the next call.
func (m *Manager) Check(ctx context.Context) []Transition {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()

	pending := m.Active()
	if len(pending) == 0 {
		return nil
	}

	var applied []Transition
	for _, o := range pending {
		if ctx.Err() != nil {
			break
		}
		if t, ok := m.evaluate(ctx, o); ok {
			applied = append(applied, m.apply(t)...)
		}
	}

	for _, t := range applied {
		switch t.Kind {
		case domain.EventFlipCompleted:
			m.logger.InfoContext(ctx, "flip completed",
				slog.String("order_id", t.Order.ID),
				slog.String("instrument", t.Order.InstrumentID),
				slog.Int("quantity", t.Order.Quantity),
				slog.Float64("profit", t.Profit),
			)
			if m.recorder != nil {
				m.recorder.Record(ctx, t.Order, t.Profit)
			}
		case domain.EventOrderExpired:
			m.logger.InfoContext(ctx, "order expired",
				slog.String("order_id", t.Order.ID),
				slog.String("instrument", t.Order.InstrumentID),
				slog.String("state", string(t.Order.State)),
			)
		case domain.EventBuyFilled:
			m.logger.DebugContext(ctx, "buy filled",
				slog.String("order_id", t.Order.ID),
				slog.String("instrument", t.Order.InstrumentID),
			)
		}
		if t.Kind != domain.EventBuyFilled {
			if f, ok := m.oracle.(forgetter); ok {
				f.Forget(t.Order.ID)
			}
		}
	}
	return applied
}

func (m *Manager) evaluate(ctx context.Context, o domain.Order) (Transition, bool) {
	if m.cfg.Now().Sub(o.EnteredStateAt) > m.cfg.OrderTimeout {
		return Transition{Kind: domain.EventOrderExpired, Order: o}, true
	}

	status, err := m.oracle.FillStatus(ctx, o)
	if err != nil {
		m.logger.WarnContext(ctx, "fill status unavailable",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
		return Transition{}, false
	}
	if status != domain.FillFilled {
		return Transition{}, false
	}

	switch o.State {
	case domain.OrderStateBuying:
		o.State = domain.OrderStateSelling
		o.EnteredStateAt = m.cfg.Now()
		return Transition{Kind: domain.EventBuyFilled, Order: o}, true
	case domain.OrderStateSelling:
		return Transition{
			Kind:   domain.EventFlipCompleted,
			Order:  o,
			Profit: o.Proceeds() - o.TotalCost,
		}, true
	}
	return Transition{}, false
}

// apply writes one transition back to the live set. It returns nothing when
// the order is no longer present.
func (m *Manager) apply(t Transition) []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, o := range m.orders {
		if o.ID != t.Order.ID {
			continue
		}
		if t.Kind == domain.EventBuyFilled {
			*o = t.Order
		} else {
			m.orders = slices.Delete(m.orders, i, i+1)
		}
		return []Transition{t}
	}
	return nil
}
