// Package tiered layers the in-process result cache over a shared remote one so
// that coordinators behind the same NATS cluster reuse each other's verdicts.
package tiered

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/quorumgate/internal/port/cache"
)

// Cache checks local first, then remote, backfilling local on a remote hit.
// Writes go to both levels.
type Cache struct {
	local       cache.Cache
	remote      cache.Cache
	backfillTTL time.Duration
}

// New creates a tiered cache. backfillTTL bounds how long remote hits stay local.
func New(local, remote cache.Cache, backfillTTL time.Duration) *Cache {
	return &Cache{local: local, remote: remote, backfillTTL: backfillTTL}
}

// Get implements cache.Cache.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.remote.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	if err := c.local.Set(ctx, key, val, c.backfillTTL); err != nil {
		slog.DebugContext(ctx, "result cache backfill skipped", "key", key, "error", err)
	}
	return val, true, nil
}

// Set implements cache.Cache. A local rejection does not stop the remote write.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Join(c.local.Set(ctx, key, value, ttl), c.remote.Set(ctx, key, value, ttl))
}

// Delete implements cache.Cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return errors.Join(c.local.Delete(ctx, key), c.remote.Delete(ctx, key))
}

// Clear drops only the local level. Memory remediation must not wipe results
// other coordinators still share.
func (c *Cache) Clear(ctx context.Context) error {
	return c.local.Clear(ctx)
}
