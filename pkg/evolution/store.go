package evolution

import (
	"context"
	"sync"
)

// Store persists the single best-solution slot. Save overwrites whatever was
// there; Load returns ErrNotFound when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, record *BestSolutionRecord) error
	Load(ctx context.Context) (*BestSolutionRecord, error)
}

// MemoryStore keeps the slot in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	record *BestSolutionRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, record *BestSolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = cloneRecord(record)
	return nil
}

// Load implements Store
func (s *MemoryStore) Load(_ context.Context) (*BestSolutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, ErrNotFound
	}
	return cloneRecord(s.record), nil
}

func cloneRecord(r *BestSolutionRecord) *BestSolutionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Genes = append([]float64(nil), r.Genes...)
	c.GenerationStats = append([]GenerationStats(nil), r.GenerationStats...)
	return &c
}
