package domain

import "context"

// KVStore persists opaque values by key. Load returns ErrNotFound when the
// key has never been saved.
type KVStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// FlipHistory is an append-only log of completed flips.
type FlipHistory interface {
	InsertFlip(ctx context.Context, flip CompletedFlip) error
	RecentFlips(ctx context.Context, limit int) ([]CompletedFlip, error)
}
