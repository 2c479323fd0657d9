package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis. It holds the
// serialized terminal form of settled exchanges so repeated Process calls can
// be answered without touching the database. Advisory only: a cold cache
// costs one extra read, never correctness.
type SettlementCache struct {
	client *goredis.Client
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement cache.
func NewSettlementCache(client *goredis.Client) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement:",
	}
}

// Get retrieves a cached terminal exchange by id.
// Returns nil, nil if the key does not exist.
func (c *SettlementCache) Get(ctx context.Context, exchangeID uuid.UUID) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+exchangeID.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement get: %w", err)
	}
	return val, nil
}

// Set stores a terminal exchange in the cache with TTL.
func (c *SettlementCache) Set(ctx context.Context, exchangeID uuid.UUID, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+exchangeID.String(), value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis settlement set: %w", err)
	}
	return nil
}
