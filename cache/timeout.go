package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/quarrylabs/go-cachekit/logger"
	"github.com/quarrylabs/go-cachekit/telemetry"
)

// DefaultOperationTimeout bounds the caller-visible latency of a single
// cache operation when the namespace configuration does not override it.
const DefaultOperationTimeout = 250 * time.Millisecond

// DefaultPoolWorkers is the per-namespace worker pool size.
const DefaultPoolWorkers = 8

// workerPool is a fixed set of goroutines draining a task channel. Closing
// cancels the pool context; workers finish the task in hand and exit.
// Queued tasks that never start are abandoned — their callers are bounded
// by the operation deadline anyway.
type workerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan func()
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &workerPool{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan func(), workers*2),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task()
		}
	}
}

// submit queues task unless the pool is closed or wait expires first.
func (p *workerPool) submit(task func(), wait <-chan struct{}) bool {
	if p.closed.Load() {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	case <-p.ctx.Done():
		return false
	case <-wait:
		return false
	}
}

// close drains in-flight work and rejects new submissions.
func (p *workerPool) close() {
	if p.closed.CompareAndSwap(false, true) {
		p.cancel()
		p.wg.Wait()
	}
}

// timeoutCache guarantees every operation returns within the configured
// wall-clock bound regardless of how long the delegate hangs. Work runs on
// a bounded per-namespace pool; on overrun the in-flight call is cancelled
// best-effort, its eventual result discarded, and the operation's safe
// default returned. It wraps the circuit breaker so a hang is converted
// into a fast context failure the breaker can account for.
type timeoutCache struct {
	namespace string
	delegate  Cache
	timeout   time.Duration
	pool      *workerPool
	log       logger.Logger
	rec       telemetry.Recorder
	timeouts  atomic.Int64
	closed    atomic.Bool
}

var _ Cache = (*timeoutCache)(nil)

func newTimeoutCache(namespace string, delegate Cache, timeout time.Duration, workers int, log logger.Logger, rec telemetry.Recorder) *timeoutCache {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &timeoutCache{
		namespace: namespace,
		delegate:  delegate,
		timeout:   timeout,
		pool:      newWorkerPool(workers),
		log:       log.With(map[string]interface{}{"namespace": namespace}),
		rec:       rec,
	}
}

// bounded runs fn on the pool and waits at most the configured timeout.
// A worker error inside the deadline is returned unchanged: this decorator
// governs time, not error translation. Each operation runs inside a trace
// span, and completions within the deadline record their latency.
func bounded[T any](ctx context.Context, t *timeoutCache, op, key string, safe T, fn func(context.Context, Cache) (T, error)) (T, error) {
	if t.closed.Load() {
		return safe, ErrClosed
	}

	ctx, end := t.rec.Span(ctx, "cache."+op, t.attrs(op)...)
	start := time.Now()

	opCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	if ok := t.pool.submit(func() {
		val, err := fn(opCtx, t.delegate)
		done <- outcome{val: val, err: err}
	}, opCtx.Done()); !ok {
		if t.closed.Load() || t.pool.closed.Load() {
			end(ErrClosed)
			return safe, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			end(err)
			return safe, err
		}
		// Could not even queue before the deadline.
		t.recordTimeout(ctx, op, key)
		end(context.DeadlineExceeded)
		return safe, nil
	}

	select {
	case out := <-done:
		t.rec.Timing(ctx, "cache.op.latency", time.Since(start), t.attrs(op)...)
		end(out.err)
		return out.val, out.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			// The caller's own context ended; propagate rather than
			// masking a deliberate cancellation as a timeout.
			end(err)
			return safe, err
		}
		t.recordTimeout(ctx, op, key)
		end(context.DeadlineExceeded)
		return safe, nil
	}
}

func (t *timeoutCache) attrs(op string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("namespace", t.namespace),
		attribute.String("operation", op),
	}
}

func (t *timeoutCache) recordTimeout(ctx context.Context, op, key string) {
	t.timeouts.Add(1)
	t.rec.Count(ctx, "cache.timeout", 1, t.attrs(op)...)
	t.log.Warn("%s timed out after %s for key %q", op, t.timeout, key)
}

func validateKey(key string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	return nil
}

func (t *timeoutCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := bounded(ctx, t, "put", key, struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.Put(ctx, key, val, ttl)
	})
	return err
}

func (t *timeoutCache) Get(ctx context.Context, key string) (bool, any, error) {
	if err := validateKey(key); err != nil {
		return false, nil, err
	}
	res, err := bounded(ctx, t, "get", key, getResult{}, func(ctx context.Context, c Cache) (getResult, error) {
		found, val, err := c.Get(ctx, key)
		return getResult{found: found, val: val}, err
	})
	return res.found, res.val, err
}

func (t *timeoutCache) Remove(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	return bounded(ctx, t, "remove", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.Remove(ctx, key)
	})
}

func (t *timeoutCache) Clear(ctx context.Context) error {
	_, err := bounded(ctx, t, "clear", "", struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.Clear(ctx)
	})
	return err
}

func (t *timeoutCache) Contains(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	return bounded(ctx, t, "contains", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.Contains(ctx, key)
	})
}

func (t *timeoutCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	for key := range entries {
		if err := validateKey(key); err != nil {
			return err
		}
	}
	_, err := bounded(ctx, t, "putAll", "", struct{}{}, func(ctx context.Context, c Cache) (struct{}, error) {
		return struct{}{}, c.PutAll(ctx, entries, ttl)
	})
	return err
}

func (t *timeoutCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
	}
	return bounded(ctx, t, "getAll", "", map[string]any{}, func(ctx context.Context, c Cache) (map[string]any, error) {
		return c.GetAll(ctx, keys)
	})
}

func (t *timeoutCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	return bounded(ctx, t, "putIfAbsent", key, false, func(ctx context.Context, c Cache) (bool, error) {
		return c.PutIfAbsent(ctx, key, val, ttl)
	})
}

func (t *timeoutCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	return bounded(ctx, t, "increment", key, 0, func(ctx context.Context, c Cache) (int64, error) {
		return c.Increment(ctx, key, delta)
	})
}

func (t *timeoutCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	return bounded(ctx, t, "decrement", key, 0, func(ctx context.Context, c Cache) (int64, error) {
		return c.Decrement(ctx, key, delta)
	})
}

// Statistics is bounded like everything else but degrades to an empty
// snapshot instead of an error so monitoring always gets an answer.
func (t *timeoutCache) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := bounded(ctx, t, "statistics", "", (*Statistics)(nil), func(ctx context.Context, c Cache) (*Statistics, error) {
		return c.Statistics(ctx)
	})
	if err != nil || stats == nil {
		return EmptyStatistics(t.namespace), nil
	}
	return stats, nil
}

// Timeouts reports how many operations have overrun their deadline.
func (t *timeoutCache) Timeouts() int64 {
	return t.timeouts.Load()
}

// Close shuts the worker pool down: in-flight work drains, new submissions
// are rejected, then the delegate chain is closed.
func (t *timeoutCache) Close(ctx context.Context) error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.pool.close()
	return t.delegate.Close(ctx)
}
