package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockPrefix = "lock:"

// LockStore handles short-lived exclusive claims in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// Acquire attempts to claim key for ttl.
// Returns true if the claim was acquired, false if already held.
func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// Release drops the claim on key.
func (s *LockStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockPrefix+key).Err()
}
