package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/quarrylabs/go-cachekit/logger"
	"github.com/quarrylabs/go-cachekit/resilience"
	"github.com/quarrylabs/go-cachekit/telemetry"
)

// Manager is the registry that hands out one decorated cache per
// namespace. The first request for a namespace builds the full chain
//
//	Stampede?( Timeout( CircuitBreaker?( TTL?( Codec?( Namespace(backend) ) ) ) ) )
//
// and every later request returns that same instance. Safe for concurrent
// use.
type Manager struct {
	backend  Cache
	fallback Cache
	defaults *Configuration
	log      logger.Logger
	rec      telemetry.Recorder

	timeout    time.Duration
	workers    int
	breakerCfg resilience.CircuitBreakerConfig

	mu     sync.RWMutex
	caches map[string]Cache
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFallback sets the secondary backend the circuit breaker diverts to
// when the primary is judged unavailable.
func WithFallback(fallback Cache) ManagerOption {
	return func(m *Manager) { m.fallback = fallback }
}

// WithDefaultConfiguration sets the configuration used by GetCache when
// the caller does not supply one.
func WithDefaultConfiguration(cfg *Configuration) ManagerOption {
	return func(m *Manager) {
		if cfg != nil {
			m.defaults = cfg.Copy()
		}
	}
}

// WithLogger sets the logger for the manager and every chain it builds.
func WithLogger(log logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithRecorder sets the telemetry recorder observations are emitted to.
func WithRecorder(rec telemetry.Recorder) ManagerOption {
	return func(m *Manager) { m.rec = rec }
}

// WithOperationTimeout sets the default per-operation deadline. Namespaces
// can override it with the "timeout" setting.
func WithOperationTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.timeout = d }
}

// WithPoolWorkers sets the per-namespace worker pool size.
func WithPoolWorkers(n int) ManagerOption {
	return func(m *Manager) { m.workers = n }
}

// WithBreakerConfig sets the base circuit breaker configuration. Namespace
// settings ("breaker.window" and friends) override individual fields.
func WithBreakerConfig(cfg resilience.CircuitBreakerConfig) ManagerOption {
	return func(m *Manager) { m.breakerCfg = cfg }
}

// NewManager returns a Manager wrapping the given shared backend.
func NewManager(backend Cache, opts ...ManagerOption) (*Manager, error) {
	if backend == nil {
		return nil, errors.New("cache: manager requires a backend")
	}
	m := &Manager{
		backend:    backend,
		defaults:   DefaultConfiguration(),
		log:        logger.NewConsole(logger.GetLevelFromEnv()),
		rec:        telemetry.Noop(),
		timeout:    DefaultOperationTimeout,
		workers:    DefaultPoolWorkers,
		breakerCfg: resilience.DefaultCircuitBreakerConfig(),
		caches:     make(map[string]Cache),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func validateNamespace(namespace string) error {
	if namespace == "" {
		return ErrNamespaceEmpty
	}
	if strings.Contains(namespace, Separator) {
		return errors.Wrapf(ErrNamespaceInvalid, "namespace %q", namespace)
	}
	return nil
}

// GetCache returns the decorated cache for namespace, building it with the
// manager's default configuration on first access.
func (m *Manager) GetCache(namespace string) (Cache, error) {
	return m.GetCacheWith(namespace, m.defaults)
}

// GetCacheWith returns the decorated cache for namespace, building it with
// cfg on first access. Concurrent first access races resolve to a single
// instance: whoever builds first wins and everyone observes that one. A
// configuration supplied after the instance exists is ignored.
func (m *Manager) GetCacheWith(namespace string, cfg *Configuration) (Cache, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNilConfiguration
	}

	m.mu.RLock()
	c, ok := m.caches[namespace]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[namespace]; ok {
		return c, nil
	}
	c, err := m.build(namespace, cfg.Copy())
	if err != nil {
		return nil, err
	}
	m.caches[namespace] = c
	m.log.Debug("built cache chain for namespace %q", namespace)
	return c, nil
}

// build composes the decorator chain for one namespace. Isolation sits
// innermost next to the shared backend so the resilience decorators see
// and account per-namespace traffic; the timeout wraps the breaker so a
// hang is bounded before it can poison the breaker's failure accounting.
func (m *Manager) build(namespace string, cfg *Configuration) (Cache, error) {
	chain, err := NewNamespace(namespace, m.backend)
	if err != nil {
		return nil, err
	}

	var fallback Cache
	if m.fallback != nil {
		fallback, err = NewNamespace(namespace, m.fallback)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Compression || cfg.Encryption {
		chain, err = newCodecCache(chain, cfg)
		if err != nil {
			return nil, err
		}
		if fallback != nil {
			fallback, err = newCodecCache(fallback, cfg)
			if err != nil {
				return nil, err
			}
		}
	}

	if cfg.TTL > 0 {
		chain = newTTLCache(chain, cfg.TTL)
		if fallback != nil {
			fallback = newTTLCache(fallback, cfg.TTL)
		}
	}

	if cfg.CircuitBreaker {
		chain = newBreakerCache(namespace, chain, fallback, m.namespaceBreakerConfig(cfg), m.log, m.rec)
	}

	timeout := m.timeout
	if d, ok := cfg.DurationSetting("timeout"); ok {
		timeout = d
	}
	chain = newTimeoutCache(namespace, chain, timeout, m.workers, m.log, m.rec)

	if cfg.StampedeProtection {
		chain = newStampedeCache(chain)
	}
	return chain, nil
}

// namespaceBreakerConfig overlays namespace settings on the base breaker
// configuration.
func (m *Manager) namespaceBreakerConfig(cfg *Configuration) resilience.CircuitBreakerConfig {
	bc := m.breakerCfg
	if n, ok := cfg.IntSetting("breaker.window"); ok {
		bc.WindowSize = n
	}
	if n, ok := cfg.IntSetting("breaker.min-calls"); ok {
		bc.MinimumCalls = n
	}
	if f, ok := cfg.FloatSetting("breaker.failure-rate"); ok {
		bc.FailureRateThreshold = f
	}
	if d, ok := cfg.DurationSetting("breaker.open-wait"); ok {
		bc.OpenTimeout = d
	}
	if n, ok := cfg.IntSetting("breaker.half-open-calls"); ok {
		bc.HalfOpenMaxCalls = n
	}
	if n, ok := cfg.IntSetting("breaker.half-open-successes"); ok {
		bc.HalfOpenSuccesses = n
	}
	return bc
}

// RemoveCache shuts down and drops the instance for namespace. Owned
// resources (the timeout worker pool) are drained before the reference is
// released; a later GetCache builds a fresh instance.
func (m *Manager) RemoveCache(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}
	m.mu.Lock()
	c, ok := m.caches[namespace]
	delete(m.caches, namespace)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close(ctx)
}

// CacheNames returns the namespaces that currently have a built instance,
// sorted. Registry introspection, not a list of valid namespaces.
func (m *Manager) CacheNames() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}

// AllStatistics aggregates a snapshot per namespace. A snapshot failure for
// one namespace is logged and that entry skipped; the aggregation itself
// never fails.
func (m *Manager) AllStatistics(ctx context.Context) map[string]*Statistics {
	m.mu.RLock()
	caches := make(map[string]Cache, len(m.caches))
	for name, c := range m.caches {
		caches[name] = c
	}
	m.mu.RUnlock()

	out := make(map[string]*Statistics, len(caches))
	for name, c := range caches {
		stats, err := c.Statistics(ctx)
		if err != nil {
			m.log.Warn("statistics failed for namespace %q: %v", name, err)
			continue
		}
		out[name] = stats
	}
	return out
}

// Close removes every namespace, draining each chain's owned resources.
// The shared backend itself stays open; its lifecycle belongs to the
// caller that created it.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	caches := m.caches
	m.caches = make(map[string]Cache)
	m.mu.Unlock()

	var firstErr error
	for name, c := range caches {
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing namespace %q", name)
		}
	}
	return firstErr
}
