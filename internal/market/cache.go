// Package market holds the most recent market snapshot and refreshes it from
// a MarketSource no more than once per refresh interval.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// freshness is the share of the refresh interval a snapshot stays valid for.
const freshness = 0.9

// CacheConfig configures a SnapshotCache.
type CacheConfig struct {
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// SnapshotCache serves the cached snapshot while it is younger than
// 0.9 x RefreshInterval and otherwise refreshes it. Concurrent callers that
// arrive during a refresh share its result.
type SnapshotCache struct {
	source  domain.MarketSource
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	group   singleflight.Group
	logger  *slog.Logger

	mu        sync.RWMutex
	snap      domain.Snapshot
	refreshed time.Time
}

// NewSnapshotCache creates a cache in front of source.
func NewSnapshotCache(source domain.MarketSource, cfg CacheConfig, logger *slog.Logger) *SnapshotCache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SnapshotCache{
		source:  source,
		ttl:     time.Duration(float64(cfg.RefreshInterval) * freshness),
		timeout: timeout,
		now:     now,
		logger:  logger.With(slog.String("component", "snapshot_cache")),
	}
}

// Get returns a snapshot no older than the freshness window. When a refresh
// fails the previous snapshot is returned together with the error, so the
// caller can log it and carry on.
func (c *SnapshotCache) Get(ctx context.Context) (domain.Snapshot, error) {
	if snap, ok := c.fresh(); ok {
		return snap, nil
	}

	v, err, shared := c.group.Do("snapshot", func() (any, error) {
		if snap, ok := c.fresh(); ok {
			return snap, nil
		}
		// Callers that joined this flight must not lose it to the first
		// caller's cancellation.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		snap, err := c.source.FetchSnapshot(fctx)
		if err != nil {
			return nil, err
		}
		now := c.now()
		if snap.FetchedAt.IsZero() {
			snap.FetchedAt = now
		}

		c.mu.Lock()
		c.snap = snap
		c.refreshed = now
		c.mu.Unlock()

		c.logger.DebugContext(ctx, "snapshot refreshed",
			slog.Int("quotes", len(snap.Quotes)),
		)
		return snap, nil
	})
	if err != nil {
		return c.Stale(), fmt.Errorf("market: refresh snapshot: %w", err)
	}
	if shared {
		c.logger.DebugContext(ctx, "joined in-flight refresh")
	}
	return v.(domain.Snapshot), nil
}

// Stale returns whatever snapshot is held, regardless of age.
func (c *SnapshotCache) Stale() domain.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Age reports how long ago the held snapshot was refreshed. It is zero when
// nothing has been fetched yet.
func (c *SnapshotCache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refreshed.IsZero() {
		return 0
	}
	return c.now().Sub(c.refreshed)
}

func (c *SnapshotCache) fresh() (domain.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.refreshed.IsZero() {
		return domain.Snapshot{}, false
	}
	return c.snap, c.now().Sub(c.refreshed) < c.ttl
}
