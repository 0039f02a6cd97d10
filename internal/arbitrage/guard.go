package arbitrage

import "github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"

// Guard flags quotes whose sell/buy ratio is implausibly wide. It only sees
// the current snapshot, so a manipulated quote that keeps the ratio under
// MaxPriceGap passes.
type Guard struct {
	MaxPriceGap float64
}

// IsSuspicious reports whether sellPrice/buyPrice exceeds MaxPriceGap. A
// ratio equal to MaxPriceGap is accepted.
func (g Guard) IsSuspicious(q domain.Quote) bool {
	if q.BuyPrice <= 0 {
		return true
	}
	return q.SellPrice/q.BuyPrice > g.MaxPriceGap
}
