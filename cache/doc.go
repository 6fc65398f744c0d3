// Package cache provides a unified caching abstraction with built-in
// resilience: namespace isolation over a shared backend, circuit breaking
// with fallback, and bounded per-operation latency, composed per namespace
// by a [Manager].
//
// # Cache Interface
//
// The [Cache] interface defines the full operation contract — [Cache.Put],
// [Cache.Get], [Cache.Remove], [Cache.Clear], [Cache.Contains],
// [Cache.PutAll], [Cache.GetAll], [Cache.PutIfAbsent], [Cache.Increment],
// [Cache.Decrement], [Cache.Statistics], and [Cache.Close]. Backends and
// decorators satisfy the same interface, so cross-cutting behavior stacks
// transparently around any implementation.
//
// The interface uses [any] for values rather than generics because Go does
// not allow generic methods on interfaces. Type safety is provided by the
// package-level generic function [GetAs].
//
// # Backends
//
// Two backends are provided:
//
//   - [NewInMemory] — In-process sharded map. Fastest option with zero
//     serialization overhead; values are stored as-is. Expired entries are
//     cleaned up by a background goroutine at a configurable interval.
//     When bounded with [WithMaxEntries], inserts beyond the bound evict a
//     victim chosen by the configured [EvictionPolicy]. Lost on process
//     restart.
//
//   - [NewRedis] — Backed by Redis using [github.com/redis/go-redis/v9].
//     Values are serialized to msgpack; counters use native INCRBY/DECRBY
//     so increments are atomic at the server. Expiry uses native Redis
//     TTL. The caller owns the client lifecycle; [Cache.Close] is a no-op.
//     Each operation uses a per-query timeout ([DefaultQueryTimeout]).
//
// # The Manager and the decorator chain
//
// [NewManager] wraps one shared backend. [Manager.GetCache] lazily builds,
// once per namespace, the chain
//
//	Stampede?( Timeout( CircuitBreaker?( TTL?( Codec?( Namespace(backend) ) ) ) ) )
//
// and returns the same instance on every later call. The layers:
//
//   - Namespace isolation prefixes every key with "namespace:" so logical
//     caches sharing one physical backend never observe each other's
//     entries. Innermost, so the resilience layers see per-namespace
//     traffic.
//
//   - The value codec (enabled by the Compression/Encryption toggles of
//     [Configuration]) transparently gzips and/or AES-GCM encrypts stored
//     values.
//
//   - The TTL layer substitutes the namespace's configured time-to-live
//     ([Configuration.TTL]) on writes that do not supply one, so namespaces
//     sharing one backend keep their own expiry.
//
//   - The circuit breaker tracks a sliding window of call outcomes and,
//     when the failure rate crosses the threshold, short-circuits calls to
//     a fallback cache. A degraded backend looks like an increasingly
//     empty cache — more misses, more fallback hits — never like request
//     failures.
//
//   - The timeout layer bounds every operation's wall-clock time on a
//     per-namespace worker pool, returning the operation's safe default on
//     overrun: an empty result for reads, a silent no-op for writes, false
//     for checks, zero for counters.
//
//   - Stampede protection (toggle) collapses concurrent reads of one key
//     into a single backend call via singleflight.
//
// # Generic Helper
//
// [GetAs] wraps [Cache.Get] with type safety:
//
//	found, user, err := cache.GetAs[User](ctx, c, "user:123")
//
// For in-memory values it performs a direct type assertion (zero cost).
// For serialized values it deserializes the stored []byte via msgpack, so
// it works transparently regardless of which backend produced the value.
//
// # Error Handling
//
// Validation errors (empty namespace, empty key, nil configuration) fail
// fast before any delegation. Backend failures are counted by the breaker
// and converted into fallback attempts. Timeouts resolve to safe defaults
// and count as breaker failures. [Cache.Statistics] always returns a
// snapshot — possibly empty — rather than an error, because statistics
// must never block monitoring.
//
// # Choosing a topology
//
// A common production shape is Redis as the shared primary with an
// in-memory fallback:
//
//	primary := cache.NewRedis(client)
//	mgr, err := cache.NewManager(primary,
//	    cache.WithFallback(cache.NewInMemory(ctx)),
//	    cache.WithOperationTimeout(100*time.Millisecond),
//	)
//	users, err := mgr.GetCache("users")
package cache
