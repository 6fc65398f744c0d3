package cache

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Separator divides the namespace tag from the caller's key. Namespaces
// must not contain it; there is no escaping.
const Separator = ":"

// namespaceCache isolates one logical cache on a shared backend by tagging
// every key with "namespace:". It introduces no failure modes of its own
// and sits innermost in the decorator chain, next to the backend, so the
// resilience decorators see per-namespace traffic.
type namespaceCache struct {
	namespace string
	prefix    string
	inner     Cache
}

var _ Cache = (*namespaceCache)(nil)

// NewNamespace wraps inner so that all keys are confined to the given
// namespace. Two wrappers with distinct namespaces never observe each
// other's entries even on the same backend.
func NewNamespace(namespace string, inner Cache) (Cache, error) {
	if namespace == "" {
		return nil, ErrNamespaceEmpty
	}
	if strings.Contains(namespace, Separator) {
		return nil, errors.Wrapf(ErrNamespaceInvalid, "namespace %q", namespace)
	}
	return &namespaceCache{
		namespace: namespace,
		prefix:    namespace + Separator,
		inner:     inner,
	}, nil
}

func (n *namespaceCache) key(key string) (string, error) {
	if key == "" {
		return "", ErrKeyEmpty
	}
	return n.prefix + key, nil
}

func (n *namespaceCache) Put(ctx context.Context, key string, val any, ttl time.Duration) error {
	k, err := n.key(key)
	if err != nil {
		return err
	}
	return n.inner.Put(ctx, k, val, ttl)
}

func (n *namespaceCache) Get(ctx context.Context, key string) (bool, any, error) {
	k, err := n.key(key)
	if err != nil {
		return false, nil, err
	}
	return n.inner.Get(ctx, k)
}

func (n *namespaceCache) Remove(ctx context.Context, key string) (bool, error) {
	k, err := n.key(key)
	if err != nil {
		return false, err
	}
	return n.inner.Remove(ctx, k)
}

// Clear removes only this namespace's entries. Requires the backend to
// support prefix enumeration; both bundled backends do.
func (n *namespaceCache) Clear(ctx context.Context) error {
	pc, ok := n.inner.(PrefixClearer)
	if !ok {
		return errors.Wrapf(ErrClearUnsupported, "namespace %q", n.namespace)
	}
	return pc.ClearPrefix(ctx, n.prefix)
}

func (n *namespaceCache) Contains(ctx context.Context, key string) (bool, error) {
	k, err := n.key(key)
	if err != nil {
		return false, err
	}
	return n.inner.Contains(ctx, k)
}

func (n *namespaceCache) PutAll(ctx context.Context, entries map[string]any, ttl time.Duration) error {
	translated := make(map[string]any, len(entries))
	for key, val := range entries {
		k, err := n.key(key)
		if err != nil {
			return err
		}
		translated[k] = val
	}
	return n.inner.PutAll(ctx, translated, ttl)
}

// GetAll translates keys on the way in and strips the namespace tag off
// the result so callers see their own key space.
func (n *namespaceCache) GetAll(ctx context.Context, keys []string) (map[string]any, error) {
	translated := make([]string, len(keys))
	for i, key := range keys {
		k, err := n.key(key)
		if err != nil {
			return nil, err
		}
		translated[i] = k
	}
	found, err := n.inner.GetAll(ctx, translated)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(found))
	for k, v := range found {
		out[strings.TrimPrefix(k, n.prefix)] = v
	}
	return out, nil
}

func (n *namespaceCache) PutIfAbsent(ctx context.Context, key string, val any, ttl time.Duration) (bool, error) {
	k, err := n.key(key)
	if err != nil {
		return false, err
	}
	return n.inner.PutIfAbsent(ctx, k, val, ttl)
}

func (n *namespaceCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	k, err := n.key(key)
	if err != nil {
		return 0, err
	}
	return n.inner.Increment(ctx, k, delta)
}

func (n *namespaceCache) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	k, err := n.key(key)
	if err != nil {
		return 0, err
	}
	return n.inner.Decrement(ctx, k, delta)
}

// Statistics labels the inner cache's counters with this namespace. The
// hit, miss, and size figures remain backend-wide because namespaces share
// one backend; only the Namespace field is scoped.
func (n *namespaceCache) Statistics(ctx context.Context) (*Statistics, error) {
	stats, err := n.inner.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	tagged := *stats
	tagged.Namespace = n.namespace
	return &tagged, nil
}

// Close is a no-op: the inner backend is shared across namespaces and its
// lifecycle belongs to whoever created it.
func (n *namespaceCache) Close(_ context.Context) error {
	return nil
}
