package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists quiz histories.
type Store interface {
	Create(ctx context.Context, h History) (History, error)
	Get(ctx context.Context, id string) (History, error)
	// ListByUser returns a user's histories, newest first.
	ListByUser(ctx context.Context, userID string) ([]History, error)
	// ListAll returns a page of every user's histories, newest first, and
	// the total count.
	ListAll(ctx context.Context, limit, offset int) ([]History, int, error)
	// UserIDs returns every user with at least one stored history.
	UserIDs(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	histories []History // insertion order
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory quiz history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, h History) (History, error) {
	if h.UserID == "" {
		return History{}, fmt.Errorf("user_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h.ID = uuid.NewString()
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	h.UpdatedAt = time.Now()
	s.histories = append(s.histories, h)
	return h, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, h := range s.histories {
		if h.ID == id {
			return h, nil
		}
	}
	return History{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []History{}
	for _, h := range s.histories {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	newestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListAll(_ context.Context, limit, offset int) ([]History, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := append([]History{}, s.histories...)
	newestFirst(all)

	total := len(all)
	if offset >= total {
		return []History{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) UserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, h := range s.histories {
		if !seen[h.UserID] {
			seen[h.UserID] = true
			ids = append(ids, h.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// newestFirst sorts by creation time descending. The slice arrives in
// insertion order, so a stable reverse keeps ties newest first too.
func newestFirst(hs []History) {
	for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
		hs[i], hs[j] = hs[j], hs[i]
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].CreatedAt.After(hs[j].CreatedAt)
	})
}
