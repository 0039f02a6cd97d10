package paper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

func TestVenueRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVenue(Config{
		StartingPurse: 100_000,
		FillDelay:     5 * time.Second,
		Now:           func() time.Time { return now },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	o := domain.Order{
		ID: "o1", InstrumentID: "X", BuyPrice: 1000, SellPrice: 1100, Quantity: 16,
		TotalCost: 16_000, State: domain.OrderStateBuying, EnteredStateAt: now,
	}

	if st, _ := v.FillStatus(ctx, o); st != domain.FillPending {
		t.Fatalf("filled before delay")
	}

	now = now.Add(5 * time.Second)
	for range 2 {
		if st, _ := v.FillStatus(ctx, o); st != domain.FillFilled {
			t.Fatalf("buy not filled after delay")
		}
	}
	if bal, _ := v.Balance(ctx); bal != 84_000 {
		t.Fatalf("purse after buy = %v, want 84000", bal)
	}

	o.State = domain.OrderStateSelling
	o.EnteredStateAt = now
	now = now.Add(5 * time.Second)
	for range 2 {
		if st, _ := v.FillStatus(ctx, o); st != domain.FillFilled {
			t.Fatalf("sell not filled after delay")
		}
	}
	if bal, _ := v.Balance(ctx); bal != 101_600 {
		t.Fatalf("purse after sell = %v, want 101600", bal)
	}
	if n := len(v.Fills()); n != 2 {
		t.Fatalf("fills = %d, want 2", n)
	}
}

func TestVenueBuyWaitsOnPurse(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVenue(Config{StartingPurse: 500, Now: func() time.Time { return now }},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	o := domain.Order{ID: "o1", TotalCost: 1000, State: domain.OrderStateBuying, EnteredStateAt: now}
	if st, _ := v.FillStatus(context.Background(), o); st != domain.FillPending {
		t.Fatal("unaffordable buy filled")
	}
	if bal, _ := v.Balance(context.Background()); bal != 500 {
		t.Fatalf("purse moved: %v", bal)
	}
}
