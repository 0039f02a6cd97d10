package arbitrage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotOf(quotes ...domain.Quote) domain.Snapshot {
	m := make(map[string]domain.Quote, len(quotes))
	for _, q := range quotes {
		m[q.InstrumentID] = q
	}
	return domain.Snapshot{Quotes: m, FetchedAt: time.Now()}
}

func TestFeeAdjusted(t *testing.T) {
	gross, pct := FeeAdjusted(100, 105, 0.0125)
	if gross != 3.75 {
		t.Fatalf("gross = %v, want 3.75", gross)
	}
	if pct != 3.75 {
		t.Fatalf("percent = %v, want 3.75", pct)
	}

	gross, pct = FeeAdjusted(1000, 1100, 0.0125)
	if gross != 87.5 || pct != 8.75 {
		t.Fatalf("got gross=%v pct=%v, want 87.5 and 8.75", gross, pct)
	}
}

func TestScoreSingleCandidate(t *testing.T) {
	s := NewScorer(ScorerConfig{
		FeeRate: 0.0125,
		Thresholds: Thresholds{
			MinProfitPercent: 3,
			MinProfitAmount:  10,
			MinVolume:        10,
			MaxItems:         50,
			MaxPerInstrument: 1024,
		},
	}, discardLogger())

	got := s.Score(context.Background(), snapshotOf(
		domain.Quote{InstrumentID: "X", BuyPrice: 1000, SellPrice: 1100, TradeVolume: 50},
		domain.Quote{InstrumentID: "THIN", BuyPrice: 1000, SellPrice: 1100, TradeVolume: 5},
		domain.Quote{InstrumentID: "FLAT", BuyPrice: 1000, SellPrice: 1010, TradeVolume: 50},
		domain.Quote{InstrumentID: "DEAD", BuyPrice: 0, SellPrice: 1100, TradeVolume: 50},
	))
	if len(got) != 1 {
		t.Fatalf("got %d opportunities, want 1: %+v", len(got), got)
	}
	o := got[0]
	if o.InstrumentID != "X" || o.GrossProfit != 87.5 || o.ProfitPercent != 8.75 {
		t.Fatalf("unexpected opportunity %+v", o)
	}
	if o.Quantity != StackSize {
		t.Fatalf("quantity = %d, want %d", o.Quantity, StackSize)
	}
	if o.TotalCost() != 1000*float64(o.Quantity) {
		t.Fatalf("total cost = %v", o.TotalCost())
	}
}

func TestScoreGuard(t *testing.T) {
	cfg := ScorerConfig{
		Thresholds:   Thresholds{MinProfitPercent: 1, MinProfitAmount: 1, MaxItems: 10, MaxPerInstrument: 64},
		GuardEnabled: true,
		MaxPriceGap:  5,
	}
	snap := snapshotOf(
		domain.Quote{InstrumentID: "SPIKE", BuyPrice: 10, SellPrice: 100},
		domain.Quote{InstrumentID: "OK", BuyPrice: 10, SellPrice: 50},
	)

	got := NewScorer(cfg, discardLogger()).Score(context.Background(), snap)
	if len(got) != 1 || got[0].InstrumentID != "OK" {
		t.Fatalf("guard enabled: got %+v, want only OK", got)
	}

	cfg.GuardEnabled = false
	got = NewScorer(cfg, discardLogger()).Score(context.Background(), snap)
	if len(got) != 2 {
		t.Fatalf("guard disabled: got %d opportunities, want 2", len(got))
	}
}

func TestScoreOrderingAndTruncation(t *testing.T) {
	s := NewScorer(ScorerConfig{
		Thresholds: Thresholds{MinProfitPercent: 1, MinProfitAmount: 0, MaxItems: 3, MaxPerInstrument: 64},
	}, discardLogger())

	got := s.Score(context.Background(), snapshotOf(
		domain.Quote{InstrumentID: "A", BuyPrice: 100, SellPrice: 110},   // 10%, 10
		domain.Quote{InstrumentID: "B", BuyPrice: 1000, SellPrice: 1100}, // 10%, 100
		domain.Quote{InstrumentID: "C", BuyPrice: 100, SellPrice: 150},   // 50%
		domain.Quote{InstrumentID: "D", BuyPrice: 100, SellPrice: 102},   // 2%
	))

	var ids []string
	for _, o := range got {
		ids = append(ids, o.InstrumentID)
	}
	if want := []string{"C", "B", "A"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("order = %v, want %v", ids, want)
	}
}

func TestPropertyScorer(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	th := Thresholds{MinProfitPercent: 3, MinProfitAmount: 5, MinVolume: 10, MaxItems: 20, MaxPerInstrument: 1024}
	s := NewScorer(ScorerConfig{FeeRate: 0.0125, Thresholds: th, GuardEnabled: true, MaxPriceGap: 3}, discardLogger())

	quoteGen := gen.Struct(reflect.TypeOf(domain.Quote{}), map[string]gopter.Gen{
		"BuyPrice":    gen.Float64Range(-10, 10_000),
		"SellPrice":   gen.Float64Range(-10, 20_000),
		"TradeVolume": gen.Float64Range(0, 100),
		"TopBuyDepth": gen.Float64Range(0, 200),
		"DepthKnown":  gen.Bool(),
	})

	build := func(qs []domain.Quote) domain.Snapshot {
		snap := domain.Snapshot{Quotes: make(map[string]domain.Quote, len(qs))}
		for i, q := range qs {
			q.InstrumentID = fmt.Sprintf("item-%d", i)
			snap.Quotes[q.InstrumentID] = q
		}
		return snap
	}

	properties.Property("every opportunity clears the thresholds", prop.ForAll(
		func(qs []domain.Quote) bool {
			for _, o := range s.Score(context.Background(), build(qs)) {
				if o.ProfitPercent < th.MinProfitPercent || o.GrossProfit < th.MinProfitAmount {
					return false
				}
				if o.TradeVolume < th.MinVolume || o.SellPrice/o.BuyPrice > 3 {
					return false
				}
				if o.Quantity < 1 || o.Quantity > StackSize {
					return false
				}
			}
			return true
		},
		gen.SliceOf(quoteGen),
	))

	properties.Property("opportunities are ranked and truncated", prop.ForAll(
		func(qs []domain.Quote) bool {
			got := s.Score(context.Background(), build(qs))
			if len(got) > th.MaxItems {
				return false
			}
			for i := 1; i < len(got); i++ {
				prev, cur := got[i-1], got[i]
				if prev.ProfitPercent < cur.ProfitPercent {
					return false
				}
				if prev.ProfitPercent == cur.ProfitPercent && prev.GrossProfit < cur.GrossProfit {
					return false
				}
			}
			return true
		},
		gen.SliceOf(quoteGen),
	))

	properties.Property("sizer stays within tiers", prop.ForAll(
		func(depth float64, limit int) bool {
			n := SizeFor(domain.Quote{TopBuyDepth: depth, DepthKnown: true}, limit)
			return n == StackSize || n == QuarterStack || (n >= 1 && n < QuarterStack)
		},
		gen.Float64Range(0, 500),
		gen.IntRange(1, 2048),
	))

	properties.Property("guard boundary is not suspicious", prop.ForAll(
		func(buy, gap float64) bool {
			g := Guard{MaxPriceGap: gap}
			return !g.IsSuspicious(domain.Quote{BuyPrice: 1, SellPrice: gap}) &&
				g.IsSuspicious(domain.Quote{BuyPrice: buy, SellPrice: buy*gap*1.01 + 1})
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 100),
	))

	properties.TestingRun(t)
}
