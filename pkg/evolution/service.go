package evolution

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service is the run trigger and best-solution query surface. Runs are
// serialized so two completing runs can never race on the store.
type Service struct {
	store     Store
	scorer    Scorer
	defaults  EvolutionConfig
	observers []Observer
	runMu     sync.Mutex
}

// NewService creates a service. defaults supplies every operator setting not
// given per call (pop_size and generations are passed to Run).
func NewService(store Store, scorer Scorer, defaults EvolutionConfig) *Service {
	return &Service{
		store:    store,
		scorer:   scorer,
		defaults: defaults,
	}
}

// AddObserver registers an observer for every subsequent run
func (s *Service) AddObserver(o Observer) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if o != nil {
		s.observers = append(s.observers, o)
	}
}

// Defaults returns the operator configuration applied to each run
func (s *Service) Defaults() EvolutionConfig {
	return s.defaults
}

// Run starts a fresh, independent evolution run and persists its best
// solution. Nothing carries over between calls.
func (s *Service) Run(ctx context.Context, generations, popSize int) (*BestSolutionRecord, error) {
	cfg := s.defaults
	cfg.Generations = generations
	cfg.PopSize = popSize
	return s.RunWithConfig(ctx, cfg)
}

// RunWithConfig is Run with a fully specified configuration
func (s *Service) RunWithConfig(ctx context.Context, cfg EvolutionConfig) (*BestSolutionRecord, error) {
	engine, err := NewEngine(cfg, s.scorer)
	if err != nil {
		return nil, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := uuid.New().String()
	engine.SetRunID(runID)
	for _, o := range s.observers {
		engine.AddObserver(o)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	record := NewRecord(runID, result)
	// The run is complete; a late cancellation must not lose its result.
	if err := s.store.Save(context.WithoutCancel(ctx), record); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("Failed to persist best solution")
		return nil, wrapPersistence("save", err)
	}

	log.Info().
		Str("run_id", runID).
		Float64("fitness", record.Fitness).
		Int("rsi_threshold", record.DecodedStrategy.RSIThreshold).
		Int("macd_fast", record.DecodedStrategy.MACDFast).
		Int("macd_slow", record.DecodedStrategy.MACDSlow).
		Int("hold_period", record.DecodedStrategy.HoldPeriod).
		Msg("Best solution saved")

	for _, o := range s.observers {
		o.RunCompleted(ctx, record)
	}

	return record, nil
}

// GetBest returns the last persisted best solution or ErrNotFound
func (s *Service) GetBest(ctx context.Context) (*BestSolutionRecord, error) {
	record, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapPersistence("load", err)
	}
	if err := record.CheckCompatibility(); err != nil {
		return nil, wrapPersistence("load", err)
	}
	return record, nil
}

func wrapPersistence(op string, err error) error {
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
