package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// redisCache is the distributed backend. Values are stored as msgpack
// unless the caller already supplies raw bytes (the value codec does).
// Counters use native INCRBY/DECRBY so atomicity is Redis's, not ours.
type redisCache struct {
	client redis.UniversalClient
	cfg    backendConfig
	stats  *statsRecorder
}

var _ Cache = (*redisCache)(nil)
var _ PrefixClearer = (*redisCache)(nil)

// NewRedis returns a new Cache backed by Redis.
// The caller owns the redis client lifecycle — Close is a no-op on the client.
func NewRedis(client redis.UniversalClient, opts ...Option) Cache {
	return &redisCache{
		client: client,
		cfg:    applyOptions(opts),
		stats:  newStatsRecorder(),
	}
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisCache) ttl(requested time.Duration) time.Duration {
	if requested <= 0 {
		return c.cfg.defaultTTL
	}
	return requested
}

func (c *redisCache) marshal(val any) (any, error) {
	if data, ok := val.([]byte); ok {
		return data, nil
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return nil, errors.Wrap(err, "cache: failed to marshal value")
	}
	return data, nil
}

func (c *redisCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	defer c.stats.observePut(time.Now())
	data, err := c.marshal(val)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.Set(qctx, key, data, c.ttl(ttl)).Err()
}

func (c *redisCache) Get(ctx context.Context, key string) (bool, any, error) {
	defer c.stats.observeGet(time.Now())
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	data, err := c.client.Get(qctx, key).Bytes()
	if err == redis.Nil {
		c.stats.miss()
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	c.stats.hit()
	return true, data, nil
}

func (c *redisCache) Remove(ctx context.Context, key string) (bool, error) {
	defer c.stats.observeRemove(time.Now())
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	removed, err := c.client.Del(qctx, key).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (c *redisCache) Clear(ctx context.Context) error {
	return c.ClearPrefix(ctx, "")
}

// ClearPrefix deletes keys matching prefix* in SCAN batches. Unlike
// FLUSHDB this leaves unrelated keyspaces on a shared instance alone.
func (c *redisCache) ClearPrefix(ctx context.Context, prefix string) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(qctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(qctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *redisCache) Contains(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Exists(qctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	defer c.stats.observePut(time.Now())
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	expires := c.ttl(ttl)
	pipe := c.client.Pipeline()
	for key, val := range entries {
		data, err := c.marshal(val)
		if err != nil {
			return err
		}
		pipe.Set(qctx, key, data, expires)
	}
	_, err := pipe.Exec(qctx)
	return err
}

func (c *redisCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	defer c.stats.observeGet(time.Now())
	if len(keys) == 0 {
		return map[string]any{}, nil
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	vals, err := c.client.MGet(qctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for i, val := range vals {
		if val == nil {
			c.stats.miss()
			continue
		}
		c.stats.hit()
		// go-redis returns MGET values as strings.
		if s, ok := val.(string); ok {
			out[keys[i]] = []byte(s)
		} else {
			out[keys[i]] = val
		}
	}
	return out, nil
}

func (c *redisCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	defer c.stats.observePut(time.Now())
	data, err := c.marshal(val)
	if err != nil {
		return false, err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.SetNX(qctx, key, data, c.ttl(ttl)).Result()
}

func (c *redisCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.IncrBy(qctx, key, delta).Result()
}

func (c *redisCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.DecrBy(qctx, key, delta).Result()
}

func (c *redisCache) Statistics(ctx context.Context) (*Statistics, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	size, err := c.client.DBSize(qctx).Result()
	if err != nil {
		// The client-side counters are still worth reporting.
		size = 0
	}
	return c.stats.snapshot(size, c.cfg.maxEntries), nil
}

// Close is a no-op — the caller owns the redis client lifecycle.
func (c *redisCache) Close(_ context.Context) error {
	return nil
}
