package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "flippidy.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, "statistics.json"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("load missing err = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, "statistics.json", []byte(`{"totalProfit":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "statistics.json", []byte(`{"totalProfit":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Load(ctx, "statistics.json")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"totalProfit":2}` {
		t.Fatalf("load = %s", got)
	}
}

func TestFlipHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	for i, id := range []string{"a", "b", "c"} {
		f := domain.CompletedFlip{
			OrderID:      id,
			InstrumentID: "X",
			Quantity:     64,
			BuyPrice:     1000,
			SellPrice:    1100,
			TotalCost:    64_000,
			Profit:       6_400,
			CompletedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertFlip(ctx, f); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := s.InsertFlip(ctx, domain.CompletedFlip{OrderID: "a", CompletedAt: base}); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	flips, err := s.RecentFlips(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(flips) != 2 || flips[0].OrderID != "c" || flips[1].OrderID != "b" {
		t.Fatalf("recent = %+v", flips)
	}
	if !flips[0].CompletedAt.Equal(base.Add(2*time.Minute)) || flips[0].Profit != 6_400 {
		t.Fatalf("flip fields = %+v", flips[0])
	}
}
