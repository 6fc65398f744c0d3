package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// stampedeCache collapses concurrent Gets for the same key into a single
// delegate call so a hot-key miss storm produces one backend round trip
// instead of hundreds. Only reads are deduplicated; every other operation
// passes straight through the embedded delegate.
type stampedeCache struct {
	Cache
	group singleflight.Group
}

func newStampedeCache(delegate Cache) *stampedeCache {
	return &stampedeCache{Cache: delegate}
}

func (s *stampedeCache) Get(ctx context.Context, key string) (bool, any, error) {
	if err := validateKey(key); err != nil {
		return false, nil, err
	}
	res, err, _ := s.group.Do(key, func() (any, error) {
		found, val, err := s.Cache.Get(ctx, key)
		return getResult{found: found, val: val}, err
	})
	if err != nil {
		return false, nil, err
	}
	r := res.(getResult)
	return r.found, r.val, nil
}
