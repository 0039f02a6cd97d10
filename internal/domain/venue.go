package domain

import "context"

// MarketSource fetches a full market snapshot. Failures wrap ErrTransport.
type MarketSource interface {
	FetchSnapshot(ctx context.Context) (Snapshot, error)
}

// BalanceSource reports the spendable account balance. Failures wrap
// ErrUnavailable.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// FillOracle reports whether an order's current side has filled.
type FillOracle interface {
	FillStatus(ctx context.Context, order Order) (FillStatus, error)
}
