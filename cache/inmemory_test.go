package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", val)
}

func TestInMemoryGetMiss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	found, val, err := c.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestInMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "value", 30*time.Millisecond))

	found, _, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)

	time.Sleep(50 * time.Millisecond)

	found, _, err = c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryPutOverwrites(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "first", 0))
	assert.NoError(t, c.Put(ctx, "key", "second", 0))

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "second", val)
}

func TestInMemoryRemove(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	removed, err := c.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestInMemoryContains(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	ok, err := c.Contains(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))

	ok, err = c.Contains(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryClear(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "a", 1, 0))
	assert.NoError(t, c.Put(ctx, "b", 2, 0))
	assert.NoError(t, c.Clear(ctx))

	found, _, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, found)

	stats, err := c.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), stats.Size)
}

func TestInMemoryClearPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "users:1", "alice", 0))
	assert.NoError(t, c.Put(ctx, "users:2", "bob", 0))
	assert.NoError(t, c.Put(ctx, "orders:1", "widget", 0))

	pc, ok := c.(PrefixClearer)
	assert.True(t, ok)
	assert.NoError(t, pc.ClearPrefix(ctx, "users:"))

	found, _, _ := c.Get(ctx, "users:1")
	assert.False(t, found)
	found, _, _ = c.Get(ctx, "orders:1")
	assert.True(t, found)
}

func TestInMemoryPutAllGetAll(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.PutAll(ctx, map[string]any{"a": 1, "b": 2, "c": 3}, 0))

	out, err := c.GetAll(ctx, []string{"a", "b", "missing"})
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, out["a"])
	assert.Equal(t, 2, out["b"])
}

func TestInMemoryPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	stored, err := c.PutIfAbsent(ctx, "key", "first", 0)
	assert.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.PutIfAbsent(ctx, "key", "second", 0)
	assert.NoError(t, err)
	assert.False(t, stored)

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "first", val)
}

func TestInMemoryPutIfAbsentAfterExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	stored, err := c.PutIfAbsent(ctx, "key", "first", 20*time.Millisecond)
	assert.NoError(t, err)
	assert.True(t, stored)

	time.Sleep(40 * time.Millisecond)

	stored, err = c.PutIfAbsent(ctx, "key", "second", 0)
	assert.NoError(t, err)
	assert.True(t, stored)
}

func TestInMemoryIncrementDecrement(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

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

func TestInMemoryIncrementNonCounter(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "not a number", 0))

	_, err := c.Increment(ctx, "key", 1)
	assert.Error(t, err)
}

func TestInMemoryConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Increment(ctx, "counter", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	found, val, err := c.Get(ctx, "counter")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(100), val)
}

func TestInMemoryMaxEntriesEviction(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx, WithShards(1), WithMaxEntries(3), WithEvictionPolicy(PolicyFIFO))
	defer c.Close(ctx)

	for i := 0; i < 5; i++ {
		assert.NoError(t, c.Put(ctx, fmt.Sprintf("key-%d", i), i, 0))
		time.Sleep(time.Millisecond)
	}

	stats, err := c.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), stats.Size)
	assert.Equal(t, int64(2), stats.Evictions)

	// FIFO evicts the oldest inserts first.
	found, _, _ := c.Get(ctx, "key-0")
	assert.False(t, found)
	found, _, _ = c.Get(ctx, "key-4")
	assert.True(t, found)
}

func TestInMemoryLRUEviction(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx, WithShards(1), WithMaxEntries(2), WithEvictionPolicy(PolicyLRU))
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "a", 1, 0))
	time.Sleep(time.Millisecond)
	assert.NoError(t, c.Put(ctx, "b", 2, 0))
	time.Sleep(time.Millisecond)

	// Touch a so b becomes the least recently used.
	found, _, _ := c.Get(ctx, "a")
	assert.True(t, found)
	time.Sleep(time.Millisecond)

	assert.NoError(t, c.Put(ctx, "c", 3, 0))

	found, _, _ = c.Get(ctx, "b")
	assert.False(t, found)
	found, _, _ = c.Get(ctx, "a")
	assert.True(t, found)
}

func TestInMemoryJanitorRemovesExpired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx, WithExpiryCheck(20*time.Millisecond))
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "value", 10*time.Millisecond))

	assert.Eventually(t, func() bool {
		stats, err := c.Statistics(ctx)
		return err == nil && stats.Size == 0
	}, time.Second, 10*time.Millisecond)
}

func TestInMemoryStatistics(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx, WithMaxEntries(10))
	defer c.Close(ctx)

	assert.NoError(t, c.Put(ctx, "key", "value", 0))
	c.Get(ctx, "key")
	c.Get(ctx, "key")
	c.Get(ctx, "missing")

	stats, err := c.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.InDelta(t, 1.0/3.0, stats.MissRate, 0.001)
	assert.Equal(t, int64(1), stats.Size)
	assert.Equal(t, int64(10), stats.MaxSize)
	assert.InDelta(t, 10.0, stats.FillPercent, 0.001)
	assert.Equal(t, WindowAll, stats.Window)
	assert.Positive(t, stats.GetLatency.Max)
}

func TestInMemoryCloseIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	assert.NoError(t, c.Close(ctx))
	assert.NoError(t, c.Close(ctx))
}
