package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrKeyEmpty is returned when a keyed operation is given an empty key.
	ErrKeyEmpty = errors.New("cache: key must not be empty")
	// ErrNamespaceEmpty is returned when a namespace identifier is empty.
	ErrNamespaceEmpty = errors.New("cache: namespace must not be empty")
	// ErrNamespaceInvalid is returned when a namespace contains the
	// reserved separator character.
	ErrNamespaceInvalid = errors.New("cache: namespace must not contain the separator")
	// ErrNilConfiguration is returned when a nil configuration is supplied.
	ErrNilConfiguration = errors.New("cache: configuration must not be nil")
	// ErrClosed is returned for operations on a cache whose owned resources
	// have been released.
	ErrClosed = errors.New("cache: closed")
	// ErrClearUnsupported is returned when a namespace-scoped clear is
	// requested on a backend that cannot enumerate keys by prefix.
	ErrClearUnsupported = errors.New("cache: backend does not support prefix clear")
)

// Cache is the operation contract every backend and every decorator
// satisfies, so cross-cutting behavior composes transparently around any
// implementation. All methods are safe for concurrent use.
//
// TTL semantics follow Set in prior iterations of this package: a ttl <= 0
// means "use the configured default TTL".
type Cache interface {
	// Put stores a value under key.
	Put(ctx context.Context, key string, val any, ttl time.Duration) error

	// Get retrieves a value. found is false on a miss; a miss is not an
	// error.
	Get(ctx context.Context, key string) (found bool, val any, err error)

	// Remove deletes a key, reporting whether it existed.
	Remove(ctx context.Context, key string) (bool, error)

	// Clear removes every entry this cache can see.
	Clear(ctx context.Context) error

	// Contains reports whether key is present and unexpired.
	Contains(ctx context.Context, key string) (bool, error)

	// PutAll stores every entry of the map.
	PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error

	// GetAll retrieves the given keys. Only found keys appear in the
	// result map.
	GetAll(ctx context.Context, keys []string) (map[string]any, error)

	// PutIfAbsent stores the value only when the key is not already
	// present, reporting whether the store happened.
	PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error)

	// Increment atomically adds delta to the integer counter at key,
	// creating it at zero when absent, and returns the new value.
	// Atomicity is the backend's: this layer never emulates counters with
	// read-modify-write.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Decrement atomically subtracts delta from the counter at key and
	// returns the new value.
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	// Statistics returns a point-in-time health snapshot. It must always
	// return something usable for monitoring, never block indefinitely.
	Statistics(ctx context.Context) (*Statistics, error)

	// Close releases resources owned by this cache instance. Shared
	// backends are not closed by decorators layered on top of them.
	Close(ctx context.Context) error
}

// PrefixClearer is an optional capability: backends that can enumerate keys
// by prefix implement it so the namespace wrapper can clear one namespace
// without touching its neighbors.
type PrefixClearer interface {
	ClearPrefix(ctx context.Context, prefix string) error
}

// GetAs retrieves a typed value from the cache.
// For in-memory values it performs a direct type assertion.
// For serialized values (Redis, or any chain with the value codec enabled)
// it deserializes from []byte using msgpack.
func GetAs[T any](ctx context.Context, c Cache, key string) (bool, T, error) {
	found, val, err := c.Get(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			var zero T
			return false, zero, errors.Wrap(err, "cache: failed to unmarshal value")
		}
		return true, result, nil
	}
	var zero T
	return false, zero, errors.Newf("cache: cannot convert value of type %T to %T", val, zero)
}

// DefaultTTL is the default time-to-live used when a configuration does not
// set one and Put is called with ttl <= 0.
const DefaultTTL = 5 * time.Minute

// DefaultQueryTimeout is the per-operation timeout for cache backends that
// perform I/O (Redis). Prevents indefinite hangs on slow or unresponsive
// storage; the timeout decorator bounds the caller-visible latency on top
// of this.
const DefaultQueryTimeout = 5 * time.Second

// backendConfig holds the resolved construction-time settings for a backend.
type backendConfig struct {
	defaultTTL   time.Duration
	queryTimeout time.Duration
	expiryCheck  time.Duration
	shards       int
	maxEntries   int64
	policy       EvictionPolicy
}

// Option configures a backend implementation.
type Option func(*backendConfig)

func defaultBackendConfig() backendConfig {
	return backendConfig{
		defaultTTL:   DefaultTTL,
		queryTimeout: DefaultQueryTimeout,
		expiryCheck:  time.Minute,
		shards:       16,
		policy:       PolicyLRU,
	}
}

func applyOptions(opts []Option) backendConfig {
	cfg := defaultBackendConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL used when Put is called with ttl <= 0.
// Defaults to DefaultTTL (5 minutes).
func WithDefaultTTL(d time.Duration) Option {
	return func(c *backendConfig) { c.defaultTTL = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed caches.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *backendConfig) { c.queryTimeout = d }
}

// WithExpiryCheck sets the interval for background expired entry cleanup in
// the in-memory backend. Defaults to 1 minute.
func WithExpiryCheck(d time.Duration) Option {
	return func(c *backendConfig) { c.expiryCheck = d }
}

// WithShards sets the shard count for the in-memory backend. Rounded up to
// a power of two. Defaults to 16.
func WithShards(n int) Option {
	return func(c *backendConfig) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithMaxEntries bounds the in-memory backend's entry count; inserts beyond
// the bound evict a victim chosen by the eviction policy. 0 means unbounded.
func WithMaxEntries(n int64) Option {
	return func(c *backendConfig) { c.maxEntries = n }
}

// WithEvictionPolicy sets the victim-selection policy for the in-memory
// backend. Defaults to PolicyLRU.
func WithEvictionPolicy(p EvictionPolicy) Option {
	return func(c *backendConfig) { c.policy = p }
}
