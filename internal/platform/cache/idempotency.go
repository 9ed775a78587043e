package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyInUse reports a request key that was already reserved.
var ErrKeyInUse = errors.New("idempotency key already used")

// Idempotency reserves request keys per tenant in redis.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotency constructs the store. Keys expire after ttl.
func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl}
}

func idempotencyKey(tenantID int64, key string) string {
	return fmt.Sprintf("books:idem:%d:%s", tenantID, key)
}

// Reserve claims key for the tenant, returning ErrKeyInUse when it is taken.
func (s *Idempotency) Reserve(ctx context.Context, tenantID int64, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	ok, err := s.client.SetNX(ctx, idempotencyKey(tenantID, key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("platform/cache: reserve: %w", err)
	}
	if !ok {
		return ErrKeyInUse
	}
	return nil
}

// Release frees key so a failed request can be retried.
func (s *Idempotency) Release(ctx context.Context, tenantID int64, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, idempotencyKey(tenantID, key)).Err()
}
