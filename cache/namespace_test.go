package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceValidation(t *testing.T) {
	backend := newFakeCache()

	_, err := NewNamespace("", backend)
	assert.ErrorIs(t, err, ErrNamespaceEmpty)

	_, err = NewNamespace("bad:name", backend)
	assert.ErrorIs(t, err, ErrNamespaceInvalid)

	_, err = NewNamespace("users", backend)
	assert.NoError(t, err)
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()

	a, err := NewNamespace("a", backend)
	assert.NoError(t, err)
	b, err := NewNamespace("b", backend)
	assert.NoError(t, err)

	assert.NoError(t, a.Put(ctx, "key", "from-a", 0))
	assert.NoError(t, b.Put(ctx, "key", "from-b", 0))

	found, val, err := a.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-a", val)

	found, val, err = b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "from-b", val)

	removed, err := a.Remove(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, removed)

	found, _, err = b.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestNamespaceKeyPrefixing(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()

	ns, err := NewNamespace("users", backend)
	assert.NoError(t, err)
	assert.NoError(t, ns.Put(ctx, "1", "alice", 0))

	found, val, err := backend.Get(ctx, "users:1")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", val)
}

func TestNamespaceEmptyKey(t *testing.T) {
	ctx := context.Background()
	ns, err := NewNamespace("users", newFakeCache())
	assert.NoError(t, err)

	assert.ErrorIs(t, ns.Put(ctx, "", "value", 0), ErrKeyEmpty)

	_, _, err = ns.Get(ctx, "")
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = ns.Remove(ctx, "")
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = ns.Increment(ctx, "", 1)
	assert.ErrorIs(t, err, ErrKeyEmpty)

	err = ns.PutAll(ctx, map[string]any{"": "value"}, 0)
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = ns.GetAll(ctx, []string{"ok", ""})
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestNamespaceClearScoped(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()

	a, err := NewNamespace("a", backend)
	assert.NoError(t, err)
	b, err := NewNamespace("b", backend)
	assert.NoError(t, err)

	assert.NoError(t, a.Put(ctx, "k1", 1, 0))
	assert.NoError(t, a.Put(ctx, "k2", 2, 0))
	assert.NoError(t, b.Put(ctx, "k1", 3, 0))

	assert.NoError(t, a.Clear(ctx))

	found, _, _ := a.Get(ctx, "k1")
	assert.False(t, found)
	found, _, _ = b.Get(ctx, "k1")
	assert.True(t, found)
}

// nonClearing hides the fake's ClearPrefix so the wrapper sees a backend
// without prefix enumeration.
type nonClearing struct{ Cache }

func TestNamespaceClearUnsupported(t *testing.T) {
	ctx := context.Background()
	ns, err := NewNamespace("users", nonClearing{Cache: newFakeCache()})
	assert.NoError(t, err)

	assert.ErrorIs(t, ns.Clear(ctx), ErrClearUnsupported)
}

func TestNamespaceBulkOperations(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()

	ns, err := NewNamespace("users", backend)
	assert.NoError(t, err)

	assert.NoError(t, ns.PutAll(ctx, map[string]any{"1": "alice", "2": "bob"}, 0))

	// Result keys come back unprefixed.
	out, err := ns.GetAll(ctx, []string{"1", "2", "3"})
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "alice", out["1"])
	assert.Equal(t, "bob", out["2"])
}

func TestNamespaceCounters(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()

	a, err := NewNamespace("a", backend)
	assert.NoError(t, err)
	b, err := NewNamespace("b", backend)
	assert.NoError(t, err)

	val, err := a.Increment(ctx, "counter", 5)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), val)

	// b has its own counter at the same logical key.
	val, err = b.Increment(ctx, "counter", 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = a.Decrement(ctx, "counter", 2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), val)
}

func TestNamespaceStatisticsTagged(t *testing.T) {
	ctx := context.Background()
	ns, err := NewNamespace("users", newFakeCache())
	assert.NoError(t, err)

	stats, err := ns.Statistics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "users", stats.Namespace)
}

func TestNamespaceCloseLeavesBackendOpen(t *testing.T) {
	ctx := context.Background()
	backend := newFakeCache()
	ns, err := NewNamespace("users", backend)
	assert.NoError(t, err)

	assert.NoError(t, ns.Close(ctx))
	assert.Equal(t, int64(0), backend.callCount("close"))
}
