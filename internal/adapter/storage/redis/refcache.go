package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ProviderRefCache implements ports.ProviderRefCache using Redis. It is the
// webhook dedupe fast path; the payment_events uniqueness constraint stays
// authoritative when this cache misses or is cold.
type ProviderRefCache struct {
	client *goredis.Client
	prefix string
}

// NewProviderRefCache creates a new Redis-backed provider reference cache.
func NewProviderRefCache(client *goredis.Client) *ProviderRefCache {
	return &ProviderRefCache{
		client: client,
		prefix: "provider_ref:",
	}
}

// Seen reports whether the provider reference was already processed.
func (c *ProviderRefCache) Seen(ctx context.Context, providerRef string) (bool, error) {
	err := c.client.Get(ctx, c.prefix+providerRef).Err()
	if err != nil {
		if err == goredis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis provider ref get: %w", err)
	}
	return true, nil
}

// MarkSeen records a processed provider reference with TTL.
func (c *ProviderRefCache) MarkSeen(ctx context.Context, providerRef string, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+providerRef, 1, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis provider ref set: %w", err)
	}
	return nil
}
