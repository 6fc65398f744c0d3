package cache

import (
	"context"
	"time"
)

// ttlCache substitutes the namespace's configured TTL when a write arrives
// with ttl <= 0. Without it every namespace would inherit the shared
// backend's single default and configured per-namespace TTLs would never
// take effect. Reads and counters pass straight through the embedded
// delegate.
type ttlCache struct {
	Cache
	ttl time.Duration
}

func newTTLCache(delegate Cache, ttl time.Duration) *ttlCache {
	return &ttlCache{Cache: delegate, ttl: ttl}
}

func (t *ttlCache) resolve(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return t.ttl
	}
	return ttl
}

func (t *ttlCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	return t.Cache.Put(ctx, key, val, t.resolve(ttl))
}

func (t *ttlCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	return t.Cache.PutAll(ctx, entries, t.resolve(ttl))
}

func (t *ttlCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	return t.Cache.PutIfAbsent(ctx, key, val, t.resolve(ttl))
}
