package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// keepLock refreshes lock every ttl/3 until ctx ends. A failed refresh
// returns an error, which cancels the run.
func keepLock(ctx context.Context, lock domain.Lock, ttl time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(max(ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := lock.Refresh(ctx, ttl); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.ErrorContext(ctx, "engine lock lost", slog.String("error", err.Error()))
				return fmt.Errorf("app: engine lock: %w", err)
			}
		}
	}
}
