package arbitrage

import (
	"math"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// Batch tiers used when sizing an order. A full stack is also the assumed
// depth when the venue does not report one.
const (
	StackSize    = 64
	QuarterStack = 16
)

// SizeFor returns the quantity to trade for q, capped by maxPerInstrument and
// rounded down to a full stack, a quarter stack, or a whole unit count.
func SizeFor(q domain.Quote, maxPerInstrument int) int {
	available := float64(StackSize)
	if q.DepthKnown {
		available = q.TopBuyDepth
	}
	available = math.Min(available, float64(maxPerInstrument))
	available = math.Min(available, StackSize)

	switch {
	case available >= StackSize:
		return StackSize
	case available >= QuarterStack:
		return QuarterStack
	default:
		return max(1, int(math.Floor(available)))
	}
}
