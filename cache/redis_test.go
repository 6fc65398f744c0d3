package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedis(client)
}

func TestRedisPutGet(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	found, s, err := GetAs[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", s)
}

func TestRedisGetMiss(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	found, val, err := c.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestRedisStructRoundTrip(t *testing.T) {
	type session struct {
		UserID string `msgpack:"user_id"`
		Expiry int64  `msgpack:"expiry"`
	}
	ctx := context.Background()
	_, c := newTestRedis(t)

	in := session{UserID: "u-123", Expiry: 1700000000}
	assert.NoError(t, c.Put(ctx, "session", in, 0))

	found, out, err := GetAs[session](ctx, c, "session")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestRedisTTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "key", "value", time.Second))

	mr.FastForward(2 * time.Second)

	found, _, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisRemove(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	removed, err := c.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestRedisContains(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	ok, err := c.Contains(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	ok, err = c.Contains(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisClearPrefix(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "users:1", "alice", 0))
	assert.NoError(t, c.Put(ctx, "users:2", "bob", 0))
	assert.NoError(t, c.Put(ctx, "orders:1", "widget", 0))

	pc, ok := c.(PrefixClearer)
	assert.True(t, ok)
	assert.NoError(t, pc.ClearPrefix(ctx, "users:"))

	found, _, err := c.Get(ctx, "users:1")
	assert.NoError(t, err)
	assert.False(t, found)
	found, _, err = c.Get(ctx, "orders:1")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestRedisClear(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "a", 1, 0))
	assert.NoError(t, c.Put(ctx, "b", 2, 0))
	assert.NoError(t, c.Clear(ctx))

	found, _, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisPutAllGetAll(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.PutAll(ctx, map[string]any{"a": "1", "b": "2"}, 0))

	out, err := c.GetAll(ctx, []string{"a", "b", "missing"})
	assert.NoError(t, err)
	assert.Len(t, out, 2)

	found, s, err := GetAs[string](ctx, c, "a")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", s)
}

func TestRedisPutAllAppliesTTL(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestRedis(t)

	assert.NoError(t, c.PutAll(ctx, map[string]any{"a": "1"}, time.Second))

	mr.FastForward(2 * time.Second)

	found, _, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	stored, err := c.PutIfAbsent(ctx, "key", "first", 0)
	assert.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.PutIfAbsent(ctx, "key", "second", 0)
	assert.NoError(t, err)
	assert.False(t, stored)

	found, s, err := GetAs[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", s)
}

func TestRedisIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	val, err := c.Increment(ctx, "counter", 5)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), val)

	val, err = c.Increment(ctx, "counter", 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(8), val)

	val, err = c.Decrement(ctx, "counter", 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(6), val)
}

func TestRedisRawBytesPassthrough(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	raw := []byte{0x01, 0x02, 0x03}
	assert.NoError(t, c.Put(ctx, "blob", raw, 0))

	found, val, err := c.Get(ctx, "blob")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, raw, val)
}

func TestRedisStatistics(t *testing.T) {
	ctx := context.Background()
	_, c := newTestRedis(t)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))
	c.Get(ctx, "key")
	c.Get(ctx, "missing")

	stats, err := c.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
}

func TestRedisBackendDown(t *testing.T) {
	ctx := context.Background()
	mr, c := newTestRedis(t)
	mr.Close()

	err := c.Put(ctx, "key", "value", 0)
	assert.Error(t, err)

	_, _, err = c.Get(ctx, "key")
	assert.Error(t, err)
}
