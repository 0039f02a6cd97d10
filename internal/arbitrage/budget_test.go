package arbitrage

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

func TestBudget(t *testing.T) {
	orders := []domain.Order{
		{ID: "a", State: domain.OrderStateBuying, TotalCost: 200_000},
		{ID: "b", State: domain.OrderStateSelling, TotalCost: 500_000},
	}

	if got := ReservedFunds(orders); got != 200_000 {
		t.Fatalf("ReservedFunds = %v, want 200000", got)
	}
	if got := AvailableBudget(1_000_000, 100_000, orders); got != 700_000 {
		t.Fatalf("AvailableBudget = %v, want 700000", got)
	}
	if !CanAfford(700_000, 1_000_000, 100_000, orders) {
		t.Fatal("CanAfford(700000) = false, want true")
	}
	if CanAfford(700_001, 1_000_000, 100_000, orders) {
		t.Fatal("CanAfford(700001) = true, want false")
	}
}

func TestBudgetZeroBalanceBlocksAdmission(t *testing.T) {
	if CanAfford(1, 0, 100_000, nil) {
		t.Fatal("zero balance should never afford a purchase")
	}
}

func TestPropertyBudget(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	orderGen := gen.Struct(reflect.TypeOf(domain.Order{}), map[string]gopter.Gen{
		"TotalCost": gen.Float64Range(0, 1e7),
		"State":     gen.OneConstOf(domain.OrderStateBuying, domain.OrderStateSelling),
	})

	properties.Property("only buying orders reserve funds", prop.ForAll(
		func(orders []domain.Order) bool {
			var want float64
			for _, o := range orders {
				if o.State == domain.OrderStateBuying {
					want += o.TotalCost
				}
			}
			return ReservedFunds(orders) == want
		},
		gen.SliceOf(orderGen),
	))

	properties.Property("the available budget is always affordable and nothing above it", prop.ForAll(
		func(balance, reserve float64, orders []domain.Order) bool {
			avail := AvailableBudget(balance, reserve, orders)
			return CanAfford(avail, balance, reserve, orders) && !CanAfford(avail+1, balance, reserve, orders)
		},
		gen.Float64Range(0, 1e8),
		gen.Float64Range(0, 1e6),
		gen.SliceOf(orderGen),
	))

	properties.TestingRun(t)
}
