package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/quarrylabs/go-cachekit/logger"
	"github.com/quarrylabs/go-cachekit/resilience"
	"github.com/quarrylabs/go-cachekit/telemetry"
)

// breakerCache protects calls into an unreliable delegate with a circuit
// breaker and keeps the namespace semantically available through a
// fallback cache. Failures never cross into application code when the
// operation has a safe default: an empty read, a silent write, false for
// checks, zero for counters.
//
// Writes issued while the circuit is open land only in the fallback, so
// primary and fallback can diverge until the primary recovers. Accepted
// behavior, not a defect.
type breakerCache struct {
	namespace string
	delegate  Cache
	fallback  Cache // nil when no fallback is configured
	breaker   *resilience.CircuitBreaker
	log       logger.Logger
	rec       telemetry.Recorder
}

var _ Cache = (*breakerCache)(nil)

func newBreakerCache(namespace string, delegate, fallback Cache, cfg resilience.CircuitBreakerConfig, log logger.Logger, rec telemetry.Recorder) *breakerCache {
	b := &breakerCache{
		namespace: namespace,
		delegate:  delegate,
		fallback:  fallback,
		log:       log.With(map[string]interface{}{"namespace": namespace}),
		rec:       rec,
	}
	userListener := cfg.OnStateChange
	cfg.OnStateChange = func(sc resilience.StateChange) {
		b.log.Info("circuit breaker %s -> %s", sc.From, sc.To)
		b.rec.Gauge(context.Background(), "cache.breaker.state", float64(sc.To), b.attr())
		if userListener != nil {
			userListener(sc)
		}
	}
	b.breaker = resilience.NewCircuitBreaker(cfg)
	return b
}

func (b *breakerCache) attr() attribute.KeyValue {
	return attribute.String("namespace", b.namespace)
}

// execute runs one operation through the breaker. The delegate is tried
// when the breaker admits the call; any delegate error or an open circuit
// diverts to the fallback; a fallback failure is logged and resolved to
// the operation's safe default.
func execute[T any](ctx context.Context, b *breakerCache, op, key string, safe T, fn func(context.Context, Cache) (T, error)) (T, error) {
	if err := b.breaker.Allow(); err != nil {
		b.rec.Count(ctx, "cache.breaker.rejected", 1, b.attr())
		return fallbackCall(ctx, b, op, key, safe, fn)
	}

	res, err := fn(ctx, b.delegate)
	b.breaker.Record(err == nil)
	if err == nil {
		return res, nil
	}

	b.log.Debug("%s failed on primary for key %q: %v", op, key, err)
	return fallbackCall(ctx, b, op, key, safe, fn)
}

func fallbackCall[T any](ctx context.Context, b *breakerCache, op, key string, safe T, fn func(context.Context, Cache) (T, error)) (T, error) {
	if b.fallback == nil {
		return safe, nil
	}
	b.rec.Count(ctx, "cache.fallback.used", 1, b.attr())
	res, err := fn(ctx, b.fallback)
	if err != nil {
		b.rec.Count(ctx, "cache.fallback.failed", 1, b.attr())
		b.log.Error("%s failed on fallback for key %q: %v", op, key, err)
		return safe, nil
	}
	return res, nil
}

type getResult struct {
	found bool
	val   any
}

func (b *breakerCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	_, err := execute(ctx, b, "put", key, struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.Put(ctx, key, val, ttl)
	})
	return err
}

func (b *breakerCache) Get(ctx context.Context, key string) (bool, any, error) {
	res, err := execute(ctx, b, "get", key, getResult{}, func(ctx context.Context, c Cache) (getResult, error) {
		found, val, err := c.Get(ctx, key)
		return getResult{found: found, val: val}, err
	})
	return res.found, res.val, err
}

func (b *breakerCache) Remove(ctx context.Context, key string) (bool, error) {
	return execute(ctx, b, "remove", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.Remove(ctx, key)
	})
}

func (b *breakerCache) Clear(ctx context.Context) error {
	_, err := execute(ctx, b, "clear", "", struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.Clear(ctx)
	})
	return err
}

func (b *breakerCache) Contains(ctx context.Context, key string) (bool, error) {
	return execute(ctx, b, "contains", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.Contains(ctx, key)
	})
}

func (b *breakerCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	_, err := execute(ctx, b, "putAll", "", struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.PutAll(ctx, entries, ttl)
	})
	return err
}

func (b *breakerCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	return execute(ctx, b, "getAll", "", map[string]any{}, func(ctx context.Context, c Cache) (map[string]any, error) {
		return c.GetAll(ctx, keys)
	})
}

func (b *breakerCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	return execute(ctx, b, "putIfAbsent", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.PutIfAbsent(ctx, key, val, ttl)
	})
}

func (b *breakerCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return execute(ctx, b, "increment", key, 0, func(ctx context.Context, c Cache) (int64, error) {
		return c.Increment(ctx, key, delta)
	})
}

func (b *breakerCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return execute(ctx, b, "decrement", key, 0, func(ctx context.Context, c Cache) (int64, error) {
		return c.Decrement(ctx, key, delta)
	})
}

// Statistics is exempt from circuit protection: monitoring must always get
// a snapshot. Delegate failure falls back to the fallback's statistics,
// then to an empty snapshot.
func (b *breakerCache) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := b.delegate.Statistics(ctx)
	if err == nil {
		return stats, nil
	}
	b.log.Debug("statistics failed on primary: %v", err)
	if b.fallback != nil {
		if stats, err := b.fallback.Statistics(ctx); err == nil {
			return stats, nil
		}
	}
	return EmptyStatistics(b.namespace), nil
}

// Close forwards to both chains without breaker accounting.
func (b *breakerCache) Close(ctx context.Context) error {
	err := b.delegate.Close(ctx)
	if b.fallback != nil {
		if ferr := b.fallback.Close(ctx); err == nil {
			err = ferr
		}
	}
	return err
}

// State exposes the breaker state for introspection and tests.
func (b *breakerCache) State() resilience.CircuitBreakerState {
	return b.breaker.State()
}
