package reservation

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

var _ Store = (*CachedStore)(nil)

// CachedStore memoises restaurant lookups in front of another Store.
// Restaurants are immutable after seeding, so only their reads are cached;
// slots and reservations always go to the backing store.
type CachedStore struct {
	Store
	cache *cache.Cache
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		Store: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (s *CachedStore) GetRestaurant(ctx context.Context, id int64) (Restaurant, error) {
	key := "restaurant:" + strconv.FormatInt(id, 10)
	if v, ok := s.cache.Get(key); ok {
		return v.(Restaurant), nil
	}
	r, err := s.Store.GetRestaurant(ctx, id)
	if err != nil {
		return Restaurant{}, err
	}
	s.cache.SetDefault(key, r)
	return r, nil
}

func (s *CachedStore) ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]Restaurant, error) {
	key := "restaurants:" + filter.cacheKey()
	if v, ok := s.cache.Get(key); ok {
		cached := v.([]Restaurant)
		return append([]Restaurant(nil), cached...), nil
	}
	rs, err := s.Store.ListRestaurants(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, append([]Restaurant(nil), rs...))
	return rs, nil
}

// Flush drops every cached entry; call it after reseeding.
func (s *CachedStore) Flush() {
	s.cache.Flush()
}
