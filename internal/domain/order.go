package domain

import "time"

// OrderState is the lifecycle state of an admitted order.
type OrderState string

const (
	OrderStateBuying  OrderState = "buying"
	OrderStateSelling OrderState = "selling"
)

// FillStatus is what the venue reports for an order in its current state.
type FillStatus int

const (
	FillPending FillStatus = iota
	FillFilled
)

// String returns the status name.
func (s FillStatus) String() string {
	if s == FillFilled {
		return "filled"
	}
	return "pending"
}

// Order tracks one admitted opportunity through buy and sell.
type Order struct {
	ID             string     `json:"id"`
	InstrumentID   string     `json:"instrument_id"`
	BuyPrice       float64    `json:"buy_price"`
	SellPrice      float64    `json:"sell_price"`
	Quantity       int        `json:"quantity"`
	TotalCost      float64    `json:"total_cost"`
	ProfitPercent  float64    `json:"profit_percent"`
	State          OrderState `json:"state"`
	EnteredStateAt time.Time  `json:"entered_state_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Proceeds is what the order returns once the sell side fills.
func (o Order) Proceeds() float64 {
	return o.SellPrice * float64(o.Quantity)
}

// CompletedFlip is the history row written when an order completes.
type CompletedFlip struct {
	OrderID      string    `json:"order_id"`
	InstrumentID string    `json:"instrument_id"`
	Quantity     int       `json:"quantity"`
	BuyPrice     float64   `json:"buy_price"`
	SellPrice    float64   `json:"sell_price"`
	TotalCost    float64   `json:"total_cost"`
	Profit       float64   `json:"profit"`
	CompletedAt  time.Time `json:"completed_at"`
}
