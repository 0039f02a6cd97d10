// Package paper simulates a venue with a virtual purse so the engine can run
// end to end without a live trading account.
package paper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// Config configures a paper venue.
type Config struct {
	StartingPurse float64
	// FillDelay is how long an order sits in a state before it fills.
	FillDelay time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Fill is one simulated execution.
type Fill struct {
	OrderID      string            `json:"order_id"`
	InstrumentID string            `json:"instrument_id"`
	Side         domain.OrderState `json:"side"`
	Amount       float64           `json:"amount"`
	At           time.Time         `json:"at"`
}

// Venue implements domain.BalanceSource and domain.FillOracle.
type Venue struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	purse  float64
	bought map[string]bool
	sold   map[string]bool
	fills  []Fill
}

// NewVenue creates a paper venue holding cfg.StartingPurse.
func NewVenue(cfg Config, logger *slog.Logger) *Venue {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Venue{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "paper_venue")),
		purse:  cfg.StartingPurse,
		bought: make(map[string]bool),
		sold:   make(map[string]bool),
	}
}

// Balance returns the virtual purse.
func (v *Venue) Balance(ctx context.Context) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.purse, nil
}

// FillStatus fills an order's current side once it has waited FillDelay. A
// buy the purse cannot cover stays pending. Each side moves the purse once
// no matter how often it is polled.
func (v *Venue) FillStatus(ctx context.Context, order domain.Order) (domain.FillStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.cfg.Now()
	if now.Sub(order.EnteredStateAt) < v.cfg.FillDelay {
		return domain.FillPending, nil
	}

	switch order.State {
	case domain.OrderStateBuying:
		if v.bought[order.ID] {
			return domain.FillFilled, nil
		}
		if v.purse < order.TotalCost {
			v.logger.DebugContext(ctx, "buy waiting on purse",
				slog.String("order_id", order.ID),
				slog.Float64("purse", v.purse),
				slog.Float64("cost", order.TotalCost),
			)
			return domain.FillPending, nil
		}
		v.purse -= order.TotalCost
		v.bought[order.ID] = true
		v.fills = append(v.fills, Fill{order.ID, order.InstrumentID, order.State, order.TotalCost, now})
	case domain.OrderStateSelling:
		if v.sold[order.ID] {
			return domain.FillFilled, nil
		}
		proceeds := order.Proceeds()
		v.purse += proceeds
		v.sold[order.ID] = true
		v.fills = append(v.fills, Fill{order.ID, order.InstrumentID, order.State, proceeds, now})
	default:
		return domain.FillPending, nil
	}
	return domain.FillFilled, nil
}

// Forget drops bookkeeping for an order the engine no longer tracks.
func (v *Venue) Forget(orderID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.bought, orderID)
	delete(v.sold, orderID)
}

// Fills returns every simulated execution so far.
func (v *Venue) Fills() []Fill {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Fill(nil), v.fills...)
}
