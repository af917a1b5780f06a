package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/p-n-ai/pai-progress/internal/platform/cache"
)

const defaultCacheTTL = 5 * time.Minute

// CachedStore caches per-user listings in Redis/Dragonfly. Lookups by key
// always go to the underlying store so updates read the latest score.
type CachedStore struct {
	Store
	cache *cache.Cache
	ttl   time.Duration
}

// NewCachedStore wraps next with a listing cache.
func NewCachedStore(next Store, c *cache.Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{Store: next, cache: c, ttl: ttl}
}

func (s *CachedStore) Save(ctx context.Context, rec Record) (Record, error) {
	saved, err := s.Store.Save(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	if err := s.cache.Delete(ctx, listingKey(rec.UserID)); err != nil {
		slog.Warn("failed to invalidate progress cache", "user_id", rec.UserID, "error", err)
	}
	return saved, nil
}

func (s *CachedStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	key := listingKey(userID)

	var cached []Record
	err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("progress cache read failed", "user_id", userID, "error", err)
	}

	recs, err := s.Store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, recs, s.ttl); err != nil {
		slog.Warn("progress cache write failed", "user_id", userID, "error", err)
	}
	return recs, nil
}

func listingKey(userID string) string {
	return "progress:list:" + userID
}
