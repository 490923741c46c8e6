package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedUserStore wraps a UserStore with an LRU cache. Counterpart listings
// re-resolve the same handful of profiles after every notification-triggered
// refresh, so a small cache absorbs most reads. Negative results are not
// cached: an unknown user may be created at any moment by the identity
// provider sync.
type CachedUserStore struct {
	inner UserStore
	cache *lru.Cache[string, UserData]
}

// NewCachedUserStore creates the cache wrapper. size must be positive.
func NewCachedUserStore(inner UserStore, size int) (*CachedUserStore, error) {
	cache, err := lru.New[string, UserData](size)
	if err != nil {
		return nil, err
	}
	return &CachedUserStore{inner: inner, cache: cache}, nil
}

func (s *CachedUserStore) Get(ctx context.Context, id string) (UserData, error) {
	if u, ok := s.cache.Get(id); ok {
		return u, nil
	}
	u, err := s.inner.Get(ctx, id)
	if err != nil {
		return UserData{}, err
	}
	s.cache.Add(id, u)
	return u, nil
}

func (s *CachedUserStore) Put(ctx context.Context, u UserData) error {
	if err := s.inner.Put(ctx, u); err != nil {
		return err
	}
	s.cache.Add(u.ID, u)
	return nil
}
