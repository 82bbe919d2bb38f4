package optimistic

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Additional-Code/cannadmin/internal/cache"
)

// CacheStore keeps JSON-encoded views in the shared cache.
type CacheStore[V any] struct {
	cache cache.Store
	ttl   time.Duration
}

// NewCacheStore wraps a cache store for values of type V.
func NewCacheStore[V any](c cache.Store, ttl time.Duration) *CacheStore[V] {
	return &CacheStore[V]{cache: c, ttl: ttl}
}

func (s *CacheStore[V]) Load(ctx context.Context, key string) (V, bool, error) {
	var v V
	raw, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

func (s *CacheStore[V]) Save(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, raw, s.ttl)
}

func (s *CacheStore[V]) Forget(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}
