package domain

import (
	"context"
	"time"
)

// LockManager provides a refreshable distributed lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock. Refresh extends it and fails with ErrLockHeld when
// ownership was lost.
type Lock interface {
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}
