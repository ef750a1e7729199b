package metrics

import (
	"context"
	"time"

	"github.com/ajitpratap0/evolver/pkg/evolution"
)

// InstrumentedStore wraps a best-solution store and records every operation
type InstrumentedStore struct {
	store   evolution.Store
	backend string
}

// NewInstrumentedStore wraps store, labelling its metrics with backend
func NewInstrumentedStore(store evolution.Store, backend string) *InstrumentedStore {
	return &InstrumentedStore{store: store, backend: backend}
}

// Save persists record through the wrapped store
func (s *InstrumentedStore) Save(ctx context.Context, record *evolution.BestSolutionRecord) error {
	start := time.Now()
	err := s.store.Save(ctx, record)
	RecordStoreOperation(s.backend, "save", float64(time.Since(start).Milliseconds()), err)
	if err == nil && record != nil {
		PersistedBestFitness.Set(record.Fitness)
	}
	return err
}

// Load reads the persisted record through the wrapped store
func (s *InstrumentedStore) Load(ctx context.Context) (*evolution.BestSolutionRecord, error) {
	start := time.Now()
	record, err := s.store.Load(ctx)
	RecordStoreOperation(s.backend, "load", float64(time.Since(start).Milliseconds()), err)
	return record, err
}

// Unwrap returns the underlying store
func (s *InstrumentedStore) Unwrap() evolution.Store {
	return s.store
}
