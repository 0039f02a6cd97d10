package hypixel

// bazaarResponse is the body of GET /skyblock/bazaar.
type bazaarResponse struct {
	Success     bool               `json:"success"`
	Cause       string             `json:"cause"`
	LastUpdated int64              `json:"lastUpdated"`
	Products    map[string]product `json:"products"`
}

type product struct {
	ProductID   string         `json:"product_id"`
	SellSummary []summaryEntry `json:"sell_summary"`
	BuySummary  []summaryEntry `json:"buy_summary"`
	QuickStatus quickStatus    `json:"quick_status"`
}

type summaryEntry struct {
	Amount       float64 `json:"amount"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Orders       int     `json:"orders"`
}

type quickStatus struct {
	ProductID      string  `json:"productId"`
	SellPrice      float64 `json:"sellPrice"`
	SellVolume     float64 `json:"sellVolume"`
	SellMovingWeek float64 `json:"sellMovingWeek"`
	SellOrders     int     `json:"sellOrders"`
	BuyPrice       float64 `json:"buyPrice"`
	BuyVolume      float64 `json:"buyVolume"`
	BuyMovingWeek  float64 `json:"buyMovingWeek"`
	BuyOrders      int     `json:"buyOrders"`
}
