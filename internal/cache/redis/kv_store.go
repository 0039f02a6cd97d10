package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// KVStore implements domain.KVStore with plain string keys under a prefix.
type KVStore struct {
	rdb    *redis.Client
	prefix string
}

// NewKVStore creates a KVStore. Keys are stored as prefix+key.
func NewKVStore(c *Client, prefix string) *KVStore {
	return &KVStore{rdb: c.Underlying(), prefix: prefix}
}

func (s *KVStore) fullKey(key string) string {
	return s.prefix + key
}

// Load returns the value under key, or domain.ErrNotFound.
func (s *KVStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load %s: %w", key, err)
	}
	return data, nil
}

// Save stores value under key with no expiry.
func (s *KVStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, s.fullKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save %s: %w", key, err)
	}
	return nil
}

var _ domain.KVStore = (*KVStore)(nil)
