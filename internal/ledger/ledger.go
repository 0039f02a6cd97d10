// Package ledger records completed flips and keeps running totals, a rolling
// one-hour profit rate, the best trade, and per-day aggregates.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

const (
	// DefaultKey is the store key the ledger is saved under.
	DefaultKey = "statistics.json"

	window = time.Hour
	// minSpan is the shortest history span the hourly rate is computed from.
	minSpan = 6 * time.Minute
)

// Config configures a Ledger.
type Config struct {
	Key string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Ledger is safe for concurrent use. Persistence happens outside the lock
// from a consistent copy of the durable fields.
type Ledger struct {
	store  domain.KVStore
	key    string
	now    func() time.Time
	logger *slog.Logger

	mu             sync.Mutex
	totalProfit    float64
	sessionProfit  float64
	flips          int
	best           domain.BestTrade
	daily          map[string]domain.DayStats
	history        []domain.ProfitRecord
	hourly         float64
	sessionStarted time.Time
	lastReset      time.Time
}

// New creates an empty ledger backed by store. Call Load to restore state.
func New(store domain.KVStore, cfg Config, logger *slog.Logger) *Ledger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	started := now()
	return &Ledger{
		store:          store,
		key:            key,
		now:            now,
		logger:         logger.With(slog.String("component", "ledger")),
		daily:          make(map[string]domain.DayStats),
		sessionStarted: started,
		lastReset:      started,
	}
}

// Record adds a completed order's realized profit and saves the ledger. A
// failed save is logged; the next Record saves again.
func (l *Ledger) Record(ctx context.Context, order domain.Order, profit float64) {
	l.mu.Lock()
	now := l.now()

	l.totalProfit += profit
	l.sessionProfit += profit
	l.flips++

	l.history = append(l.history, domain.ProfitRecord{At: now, Amount: profit})
	l.pruneLocked(now)

	if profit > l.best.Profit {
		l.best = domain.BestTrade{InstrumentID: order.InstrumentID, Profit: profit}
	}

	day := DayKey(now)
	ds := l.daily[day]
	ds.Profit += profit
	ds.Flips++
	l.daily[day] = ds

	doc := l.documentLocked(now)
	l.mu.Unlock()

	if err := l.write(ctx, doc); err != nil {
		l.logger.ErrorContext(ctx, "save after record failed",
			slog.String("key", l.key),
			slog.String("error", err.Error()),
		)
	}
}

// HourlyRate returns the profit per hour over the last hour. When the
// entries inside the window span less than six minutes the previous rate is
// returned unchanged.
func (l *Ledger) HourlyRate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hourlyLocked(l.now())
}

// ResetSession zeroes the session profit. Totals, daily stats and the
// rolling history are left alone.
func (l *Ledger) ResetSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionProfit = 0
	l.lastReset = l.now()
}

// Stats returns a copy of the ledger's current figures.
func (l *Ledger) Stats() domain.LedgerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	return domain.LedgerStats{
		TotalProfit:     l.totalProfit,
		SessionProfit:   l.sessionProfit,
		FlipsCompleted:  l.flips,
		HourlyRate:      l.hourlyLocked(now),
		BestTrade:       l.best,
		Today:           l.daily[DayKey(now)],
		DailyStats:      maps.Clone(l.daily),
		SessionStarted:  l.sessionStarted,
		SessionDuration: now.Sub(l.sessionStarted),
		LastReset:       l.lastReset,
	}
}

// Save persists the durable fields.
func (l *Ledger) Save(ctx context.Context) error {
	l.mu.Lock()
	doc := l.documentLocked(l.now())
	l.mu.Unlock()
	return l.write(ctx, doc)
}

// Load restores the durable fields from the store. A missing key leaves the
// ledger at zero and returns nil. An unreadable or corrupt record also
// leaves the ledger at zero but returns the error so the caller can log it.
// Session profit and the rolling history are never restored.
func (l *Ledger) Load(ctx context.Context) error {
	data, err := l.store.Load(ctx, l.key)
	if err != nil {
		l.resetDurable(document{})
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("ledger: load %s: %w", l.key, err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		l.resetDurable(document{})
		return fmt.Errorf("ledger: decode %s: %w", l.key, err)
	}
	l.resetDurable(doc)
	return nil
}

func (l *Ledger) resetDurable(doc document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalProfit = doc.TotalProfit
	l.flips = doc.FlipsCompleted
	l.best = doc.BestTrade.toDomain()
	l.daily = doc.DailyStats
	if l.daily == nil {
		l.daily = make(map[string]domain.DayStats)
	}
}

func (l *Ledger) write(ctx context.Context, doc document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("ledger: encode: %w", err)
	}
	if err := l.store.Save(ctx, l.key, data); err != nil {
		return fmt.Errorf("ledger: save %s: %w", l.key, err)
	}
	return nil
}

func (l *Ledger) documentLocked(now time.Time) document {
	return document{
		TotalProfit:    l.totalProfit,
		FlipsCompleted: l.flips,
		BestTrade:      toBestTradeDoc(l.best),
		DailyStats:     maps.Clone(l.daily),
		LastSaved:      now.UnixMilli(),
	}
}

// pruneLocked drops entries recorded strictly before now-1h.
func (l *Ledger) pruneLocked(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.history) && l.history[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.history = append(l.history[:0], l.history[i:]...)
	}
}

// hourlyLocked only counts entries younger than one hour; an entry exactly
// one hour old is outside the window.
func (l *Ledger) hourlyLocked(now time.Time) float64 {
	l.pruneLocked(now)

	var sum float64
	var oldest time.Time
	for _, r := range l.history {
		if now.Sub(r.At) >= window {
			continue
		}
		if oldest.IsZero() {
			oldest = r.At
		}
		sum += r.Amount
	}
	if oldest.IsZero() {
		return l.hourly
	}
	if span := now.Sub(oldest); span >= minSpan {
		l.hourly = sum / span.Hours()
	}
	return l.hourly
}
