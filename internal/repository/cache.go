package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotTTL = 5 * time.Minute

// snapshotCache is a read-through Redis cache for policy and claim
// snapshots. All methods are nil-safe so the repositories keep working when
// Redis is down or not configured; a cache miss just falls through to
// Postgres.
type snapshotCache struct {
	client *redis.Client
}

func newSnapshotCache(client *redis.Client) *snapshotCache {
	return &snapshotCache{client: client}
}

func (c *snapshotCache) get(ctx context.Context, key string, out any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("failed to decode cached snapshot", "key", key, "error", err)
		return false
	}
	return true
}

func (c *snapshotCache) set(ctx context.Context, key string, value any) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("failed to encode snapshot for cache", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, snapshotTTL).Err(); err != nil {
		slog.Warn("failed to cache snapshot", "key", key, "error", err)
	}
}

func (c *snapshotCache) invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("failed to invalidate cached snapshot", "key", key, "error", err)
	}
}

func policyKey(id int64) string { return fmt.Sprintf("policy:%d", id) }
func claimKey(id int64) string  { return fmt.Sprintf("claim:%d", id) }
