package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc computes the value for a cache miss.
type LoaderFunc func(ctx context.Context) ([]byte, error)

// LoadingCache wraps a Cache so that concurrent misses for the same key
// collapse into a single LoaderFunc call instead of each caller
// stampeding the backend (the fingerprint/prompt-normalization lookup
// this guards is read far more often than it's invalidated).
type LoadingCache struct {
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewLoadingCache wraps cache, storing loaded values with the given TTL.
func NewLoadingCache(cache Cache, ttl time.Duration) *LoadingCache {
	return &LoadingCache{cache: cache, ttl: ttl}
}

// GetOrLoad returns the cached value for key, or calls load to compute
// it on a miss. Concurrent GetOrLoad calls for the same key share one
// in-flight load. After the shared call returns, every waiter
// re-checks the cache rather than trusting the in-flight result
// directly, so a racing Delete between the load completing and a
// waiter resuming is not papered over by a stale shared value.
func (lc *LoadingCache) GetOrLoad(ctx context.Context, key string, load LoaderFunc) ([]byte, error) {
	if value, ok := lc.cache.Get(ctx, key); ok {
		return value, nil
	}

	_, err, _ := lc.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := lc.cache.Set(ctx, key, value, lc.ttl); setErr != nil {
			return nil, setErr
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	if value, ok := lc.cache.Get(ctx, key); ok {
		return value, nil
	}
	// Another goroutine deleted the key between our load completing and
	// this re-check; fall back to a direct load rather than recursing
	// through the singleflight group again.
	return load(ctx)
}
