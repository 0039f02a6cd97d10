package ledger

import (
	"encoding/json"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// document is the persisted subset of ledger state.
type document struct {
	TotalProfit    float64                    `json:"totalProfit"`
	FlipsCompleted int                        `json:"flipsCompleted"`
	BestTrade      bestTradeDoc               `json:"bestTrade"`
	DailyStats     map[string]domain.DayStats `json:"dailyStats"`
	LastSaved      int64                      `json:"lastSaved"`
}

type bestTradeDoc struct {
	InstrumentID *string `json:"instrumentId"`
	Profit       float64 `json:"profit"`
}

func encodeDocument(d document) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func decodeDocument(data []byte) (document, error) {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return document{}, err
	}
	if d.DailyStats == nil {
		d.DailyStats = make(map[string]domain.DayStats)
	}
	return d, nil
}

func toBestTradeDoc(b domain.BestTrade) bestTradeDoc {
	doc := bestTradeDoc{Profit: b.Profit}
	if b.InstrumentID != "" {
		id := b.InstrumentID
		doc.InstrumentID = &id
	}
	return doc
}

func (b bestTradeDoc) toDomain() domain.BestTrade {
	out := domain.BestTrade{Profit: b.Profit}
	if b.InstrumentID != nil {
		out.InstrumentID = *b.InstrumentID
	}
	return out
}

// DayKey returns the UTC calendar day t falls on, as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
