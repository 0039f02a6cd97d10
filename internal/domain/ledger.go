package domain

import "time"

// BestTrade is the most profitable completed flip. An empty InstrumentID
// means no flip has completed yet.
type BestTrade struct {
	InstrumentID string  `json:"instrument_id"`
	Profit       float64 `json:"profit"`
}

// DayStats aggregates completed flips for one UTC calendar day.
type DayStats struct {
	Profit float64 `json:"profit"`
	Flips  int     `json:"flips"`
}

// ProfitRecord is one entry of the rolling-hour history.
type ProfitRecord struct {
	At     time.Time
	Amount float64
}

// LedgerStats is a read-only view of the profit ledger.
type LedgerStats struct {
	TotalProfit     float64             `json:"total_profit"`
	SessionProfit   float64             `json:"session_profit"`
	FlipsCompleted  int                 `json:"flips_completed"`
	HourlyRate      float64             `json:"hourly_rate"`
	BestTrade       BestTrade           `json:"best_trade"`
	Today           DayStats            `json:"today"`
	DailyStats      map[string]DayStats `json:"daily_stats"`
	SessionStarted  time.Time           `json:"session_started"`
	SessionDuration time.Duration       `json:"session_duration"`
	LastReset       time.Time           `json:"last_reset"`
}
