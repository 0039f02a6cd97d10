package arbitrage

import "github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"

// ReservedFunds sums the capital committed to orders still waiting on their
// buy side.
func ReservedFunds(orders []domain.Order) float64 {
	var reserved float64
	for _, o := range orders {
		if o.State == domain.OrderStateBuying {
			reserved += o.TotalCost
		}
	}
	return reserved
}

// AvailableBudget is balance less the safety reserve and reserved funds. It
// may be negative.
func AvailableBudget(balance, safetyReserve float64, orders []domain.Order) float64 {
	return balance - safetyReserve - ReservedFunds(orders)
}

// CanAfford reports whether cost fits inside the available budget.
func CanAfford(cost, balance, safetyReserve float64, orders []domain.Order) bool {
	return AvailableBudget(balance, safetyReserve, orders) >= cost
}
