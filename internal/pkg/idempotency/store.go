package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "idemp"
	lockValue = "locked"

	// DefaultLockTTL releases a lock left behind by a crashed request.
	DefaultLockTTL = 30 * time.Second
)

// CachedResponse - the replayable part of a completed response
type CachedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// Store keeps completed responses and in-flight locks in Redis.
type Store struct {
	client  redis.Cmdable
	ttl     time.Duration
	lockTTL time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{
		client:  client,
		ttl:     ttl,
		lockTTL: DefaultLockTTL,
	}
}

// Key builds the cache key for a client supplied idempotency key, scoped by
// route and caller.
func Key(path, userID, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", keyPrefix, path, userID, idempotencyKey)
}

func lockKey(key string) string {
	return key + ":lock"
}

// Get returns the cached response, or nil when none is stored.
func (s *Store) Get(ctx context.Context, key string) (*CachedResponse, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	var cached CachedResponse
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}

	return &cached, nil
}

// Acquire takes the in-flight lock. It reports false when another request
// holding the same key is still running.
func (s *Store) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, lockKey(key), lockValue, s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}
	return ok, nil
}

// Save stores a completed response for replay.
func (s *Store) Save(ctx context.Context, key string, resp CachedResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}

	if err := s.client.Set(ctx, key, string(payload), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotent response: %w", err)
	}
	return nil
}

// Release drops the in-flight lock.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency lock: %w", err)
	}
	return nil
}
