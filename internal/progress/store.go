package progress

import (
	"context"
	"sort"
	"sync"
)

// Store persists progress records keyed by (user, concept).
type Store interface {
	// Find returns the record for the key and whether it exists.
	Find(ctx context.Context, userID, conceptID string) (Record, bool, error)
	// Save inserts or replaces the record for its key.
	Save(ctx context.Context, rec Record) (Record, error)
	// ListByUser returns all of a user's records ordered by concept id.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}

type recordKey struct {
	userID    string
	conceptID string
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	records map[recordKey]Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory progress store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[recordKey]Record),
	}
}

func (s *MemoryStore) Find(_ context.Context, userID, conceptID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordKey{userID, conceptID}]
	return rec, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[recordKey{rec.UserID, rec.ConceptID}] = rec
	return rec, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := []Record{}
	for k, rec := range s.records {
		if k.userID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ConceptID < recs[j].ConceptID
	})
	return recs, nil
}
