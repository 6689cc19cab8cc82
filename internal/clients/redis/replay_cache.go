package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/entitlement-engine/internal/platform/logger"
)

const replayKeyPrefix = "replay:"

// ReplayCache remembers reconciled (provider, provider_ref) pairs so provider
// retries can be answered without a database round trip. The ledger's unique
// constraint stays authoritative.
type ReplayCache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	ttl time.Duration
}

func NewReplayCache(log *logger.Logger, rdb goredis.UniversalClient, ttl time.Duration) *ReplayCache {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ReplayCache{log: log.With("cache", "ReplayCache"), rdb: rdb, ttl: ttl}
}

func replayKey(provider, providerRef string) string {
	return replayKeyPrefix + provider + ":" + providerRef
}

// Seen returns the cached receipt ref and whether the pair is known.
func (c *ReplayCache) Seen(ctx context.Context, provider, providerRef string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, replayKey(provider, providerRef)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("replay cache get: %w", err)
	}
	return v, true, nil
}

func (c *ReplayCache) Remember(ctx context.Context, provider, providerRef, receiptRef string) error {
	if err := c.rdb.Set(ctx, replayKey(provider, providerRef), receiptRef, c.ttl).Err(); err != nil {
		return fmt.Errorf("replay cache set: %w", err)
	}
	return nil
}
