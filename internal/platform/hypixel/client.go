// Package hypixel fetches bazaar quotes from the Hypixel public API.
package hypixel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// DefaultURL is the public bazaar endpoint.
const DefaultURL = "https://api.hypixel.net/skyblock/bazaar"

// Client implements domain.MarketSource against the bazaar endpoint.
type Client struct {
	url        string
	apiKey     string
	userAgent  string
	httpClient *http.Client
}

// ClientConfig configures a Client. Empty fields take defaults.
type ClientConfig struct {
	URL       string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
}

// NewClient creates a bazaar client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "flippidy"
	}
	return &Client{
		url:       cfg.URL,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchSnapshot downloads every product's quick status. Any network, status
// or decode failure wraps domain.ErrTransport.
func (c *Client) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	body, err := c.doGet(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("hypixel: %w: %w", domain.ErrTransport, err)
	}

	var resp bazaarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Snapshot{}, fmt.Errorf("hypixel: %w: decode bazaar: %w", domain.ErrTransport, err)
	}
	if !resp.Success {
		return domain.Snapshot{}, fmt.Errorf("hypixel: %w: api refused: %s", domain.ErrTransport, resp.Cause)
	}

	snap := domain.Snapshot{
		Quotes:    make(map[string]domain.Quote, len(resp.Products)),
		FetchedAt: time.Now(),
	}
	if resp.LastUpdated > 0 {
		snap.FetchedAt = time.UnixMilli(resp.LastUpdated)
	}
	for id, p := range resp.Products {
		snap.Quotes[id] = toQuote(id, p)
	}
	return snap, nil
}

// toQuote uses the lower of the two weekly volumes since a flip needs
// liquidity on both sides.
func toQuote(id string, p product) domain.Quote {
	qs := p.QuickStatus
	q := domain.Quote{
		InstrumentID: id,
		BuyPrice:     qs.BuyPrice,
		SellPrice:    qs.SellPrice,
		TradeVolume:  min(qs.BuyMovingWeek, qs.SellMovingWeek),
	}
	if len(p.BuySummary) > 0 {
		q.TopBuyDepth = p.BuySummary[0].Amount
		q.DepthKnown = true
	}
	return q
}

func (c *Client) doGet(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
