package domain

import "time"

// Quote is the best buy/sell price and depth for one instrument.
type Quote struct {
	InstrumentID string  `json:"instrument_id"`
	BuyPrice     float64 `json:"buy_price"`
	SellPrice    float64 `json:"sell_price"`
	TradeVolume  float64 `json:"trade_volume"`
	// TopBuyDepth is only meaningful when DepthKnown is true.
	TopBuyDepth float64 `json:"top_buy_depth"`
	DepthKnown  bool    `json:"depth_known"`
}

// Usable reports whether both sides carry a positive price.
func (q Quote) Usable() bool {
	return q.BuyPrice > 0 && q.SellPrice > 0
}

// Snapshot is an immutable set of quotes keyed by instrument id.
type Snapshot struct {
	Quotes    map[string]Quote `json:"quotes"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// Opportunity is a fee-adjusted candidate derived from a quote.
type Opportunity struct {
	InstrumentID  string  `json:"instrument_id"`
	BuyPrice      float64 `json:"buy_price"`
	SellPrice     float64 `json:"sell_price"`
	Quantity      int     `json:"quantity"`
	GrossProfit   float64 `json:"gross_profit"`
	ProfitPercent float64 `json:"profit_percent"`
	TradeVolume   float64 `json:"trade_volume"`
}

// TotalCost is the capital committed when the opportunity is bought.
func (o Opportunity) TotalCost() float64 {
	return o.BuyPrice * float64(o.Quantity)
}
