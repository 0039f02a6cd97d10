package arbitrage

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Thresholds are the minimums a quote must clear to become an opportunity.
type Thresholds struct {
	MinProfitPercent float64
	MinProfitAmount  float64
	MinVolume        float64
	MaxItems         int
	MaxPerInstrument int
}

// ScorerConfig configures the opportunity scorer.
type ScorerConfig struct {
	FeeRate      float64
	Thresholds   Thresholds
	GuardEnabled bool
	MaxPriceGap  float64
}

// Scorer turns a market snapshot into a ranked list of opportunities.
type Scorer struct {
	cfg    ScorerConfig
	guard  Guard
	logger *slog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(cfg ScorerConfig, logger *slog.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		guard:  Guard{MaxPriceGap: cfg.MaxPriceGap},
		logger: logger.With(slog.String("component", "scorer")),
	}
}

// FeeAdjusted returns the per-unit profit of buying at buy and selling at
// sell after paying feeRate on the buy, and that profit as a percentage of
// buy.
func FeeAdjusted(buy, sell, feeRate float64) (gross, percent float64) {
	b := decimal.NewFromFloat(buy)
	g := decimal.NewFromFloat(sell).Sub(b).Sub(b.Mul(decimal.NewFromFloat(feeRate)))
	if b.IsZero() {
		return g.InexactFloat64(), 0
	}
	return g.InexactFloat64(), g.Div(b).Mul(hundred).InexactFloat64()
}

// Score filters and ranks every usable quote in snap. The result is sorted by
// profit percent, then gross profit, both descending, and holds at most
// MaxItems entries. Score does not retain or mutate anything.
func (s *Scorer) Score(ctx context.Context, snap domain.Snapshot) []domain.Opportunity {
	th := s.cfg.Thresholds
	out := make([]domain.Opportunity, 0, len(snap.Quotes))

	for id, q := range snap.Quotes {
		if !q.Usable() {
			continue
		}
		gross, pct := FeeAdjusted(q.BuyPrice, q.SellPrice, s.cfg.FeeRate)
		if pct < th.MinProfitPercent || gross < th.MinProfitAmount {
			continue
		}
		if q.TradeVolume < th.MinVolume {
			s.logger.DebugContext(ctx, "skip: low volume",
				slog.String("instrument", id),
				slog.Float64("volume", q.TradeVolume),
			)
			continue
		}
		if s.cfg.GuardEnabled && s.guard.IsSuspicious(q) {
			s.logger.DebugContext(ctx, "skip: suspected manipulation",
				slog.String("instrument", id),
				slog.Float64("buy", q.BuyPrice),
				slog.Float64("sell", q.SellPrice),
			)
			continue
		}

		out = append(out, domain.Opportunity{
			InstrumentID:  id,
			BuyPrice:      q.BuyPrice,
			SellPrice:     q.SellPrice,
			Quantity:      SizeFor(q, th.MaxPerInstrument),
			GrossProfit:   gross,
			ProfitPercent: pct,
			TradeVolume:   q.TradeVolume,
		})
	}

	// Map iteration is random; the id tiebreak keeps equal scores stable.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProfitPercent != b.ProfitPercent {
			return a.ProfitPercent > b.ProfitPercent
		}
		if a.GrossProfit != b.GrossProfit {
			return a.GrossProfit > b.GrossProfit
		}
		return a.InstrumentID < b.InstrumentID
	})

	if th.MaxItems > 0 && len(out) > th.MaxItems {
		out = out[:th.MaxItems]
	}
	return out
}
