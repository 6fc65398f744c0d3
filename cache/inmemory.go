package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

type memEntry struct {
	object     any
	expires    time.Time
	insertedAt time.Time
	lastAccess time.Time
	hits       int64
}

type memShard struct {
	mu      sync.Mutex
	entries map[string]*memEntry
}

// inMemoryCache is the in-process backend: a sharded map with a TTL janitor
// goroutine and policy-directed eviction when bounded. xxhash picks the
// shard so hot namespaces spread across locks.
type inMemoryCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       backendConfig
	shards    []*memShard
	shardMask uint64
	size      atomic.Int64
	stats     *statsRecorder
}

var _ Cache = (*inMemoryCache)(nil)
var _ PrefixClearer = (*inMemoryCache)(nil)

// NewInMemory returns a new in-memory Cache implementation.
func NewInMemory(parent context.Context, opts ...Option) Cache {
	cfg := applyOptions(opts)
	n := 1
	for n < cfg.shards {
		n <<= 1
	}
	shards := make([]*memShard, n)
	for i := range shards {
		shards[i] = &memShard{entries: make(map[string]*memEntry)}
	}
	ctx, cancel := context.WithCancel(parent)
	c := &inMemoryCache{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		shards:    shards,
		shardMask: uint64(n - 1),
		stats:     newStatsRecorder(),
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}

func (c *inMemoryCache) shard(key string) *memShard {
	return c.shards[xxhash.Sum64String(key)&c.shardMask]
}

func (c *inMemoryCache) ttl(requested time.Duration) time.Duration {
	if requested <= 0 {
		return c.cfg.defaultTTL
	}
	return requested
}

// evictLocked frees one slot in s using the configured policy. Linear scan
// over one shard; acceptable for the bounded sizes this backend targets.
func (c *inMemoryCache) evictLocked(s *memShard) {
	var victim string
	var best *memEntry
	for key, e := range s.entries {
		if best == nil {
			victim, best = key, e
			continue
		}
		var worse bool
		switch c.cfg.policy {
		case PolicyLFU:
			worse = e.hits < best.hits
		case PolicyFIFO:
			worse = e.insertedAt.Before(best.insertedAt)
		case PolicyTTL:
			worse = e.expires.Before(best.expires)
		default: // PolicyLRU
			worse = e.lastAccess.Before(best.lastAccess)
		}
		if worse {
			victim, best = key, e
		}
	}
	if best != nil {
		delete(s.entries, victim)
		c.size.Add(-1)
		c.stats.evicted()
	}
}

func (c *inMemoryCache) putLocked(s *memShard, key string, val any, ttl time.Duration) {
	now := time.Now()
	if e, ok := s.entries[key]; ok {
		e.object = val
		e.expires = now.Add(ttl)
		e.lastAccess = now
		e.hits = 0
		return
	}
	if c.cfg.maxEntries > 0 && c.size.Load() >= c.cfg.maxEntries {
		c.evictLocked(s)
	}
	s.entries[key] = &memEntry{
		object:     val,
		expires:    now.Add(ttl),
		insertedAt: now,
		lastAccess: now,
	}
	c.size.Add(1)
}

func (c *inMemoryCache) Put(_ context.Context, key string, val any, ttl time.Duration) error {
	defer c.stats.observePut(time.Now())
	s := c.shard(key)
	s.mu.Lock()
	c.putLocked(s, key, val, c.ttl(ttl))
	s.mu.Unlock()
	return nil
}

func (c *inMemoryCache) Get(_ context.Context, key string) (bool, any, error) {
	defer c.stats.observeGet(time.Now())
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		c.stats.miss()
		return false, nil, nil
	}
	if e.expires.Before(time.Now()) {
		delete(s.entries, key)
		c.size.Add(-1)
		c.stats.miss()
		return false, nil, nil
	}
	e.hits++
	e.lastAccess = time.Now()
	c.stats.hit()
	return true, e.object, nil
}

func (c *inMemoryCache) Remove(_ context.Context, key string) (bool, error) {
	defer c.stats.observeRemove(time.Now())
	s := c.shard(key)
	s.mu.Lock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
		c.size.Add(-1)
	}
	s.mu.Unlock()
	return ok, nil
}

func (c *inMemoryCache) Clear(_ context.Context) error {
	for _, s := range c.shards {
		s.mu.Lock()
		c.size.Add(-int64(len(s.entries)))
		s.entries = make(map[string]*memEntry)
		s.mu.Unlock()
	}
	return nil
}

func (c *inMemoryCache) ClearPrefix(_ context.Context, prefix string) error {
	for _, s := range c.shards {
		s.mu.Lock()
		for key := range s.entries {
			if strings.HasPrefix(key, prefix) {
				delete(s.entries, key)
				c.size.Add(-1)
			}
		}
		s.mu.Unlock()
	}
	return nil
}

func (c *inMemoryCache) Contains(_ context.Context, key string) (bool, error) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if e.expires.Before(time.Now()) {
		delete(s.entries, key)
		c.size.Add(-1)
		return false, nil
	}
	return true, nil
}

func (c *inMemoryCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	for key, val := range entries {
		if err := c.Put(ctx, key, val, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (c *inMemoryCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		found, val, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = val
		}
	}
	return out, nil
}

func (c *inMemoryCache) PutIfAbsent(_ context.Context, key string, val any, ttl time.Duration) (bool, error) {
	defer c.stats.observePut(time.Now())
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.expires.After(time.Now()) {
		return false, nil
	}
	c.putLocked(s, key, val, c.ttl(ttl))
	return true, nil
}

// Increment is atomic under the shard lock: the entry's value is read,
// adjusted and written back while no other caller can touch the shard.
func (c *inMemoryCache) Increment(_ context.Context, key string, delta int64) (int64, error) {
	s := c.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if ok && e.expires.After(time.Now()) {
		counter, isInt := e.object.(int64)
		if !isInt {
			return 0, errors.Newf("cache: value at %q is not a counter", key)
		}
		counter += delta
		e.object = counter
		e.lastAccess = time.Now()
		return counter, nil
	}
	c.putLocked(s, key, delta, c.cfg.defaultTTL)
	return delta, nil
}

func (c *inMemoryCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return c.Increment(ctx, key, -delta)
}

func (c *inMemoryCache) Statistics(_ context.Context) (*Statistics, error) {
	return c.stats.snapshot(c.size.Load(), c.cfg.maxEntries), nil
}

func (c *inMemoryCache) Close(_ context.Context) error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *inMemoryCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, s := range c.shards {
				s.mu.Lock()
				for key, e := range s.entries {
					if e.expires.Before(now) {
						delete(s.entries, key)
						c.size.Add(-1)
					}
				}
				s.mu.Unlock()
			}
		}
	}
}
