package evolution

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// State is a phase of the generation loop
type State string

const (
	StateInitialized State = "initialized"
	StateEvaluating  State = "evaluating"
	StateReproducing State = "reproducing"
	StateTerminated  State = "terminated"
)

// GenerationReport is emitted after every fully evaluated generation
type GenerationReport struct {
	RunID       string          `json:"run_id"`
	Stats       GenerationStats `json:"stats"`
	BestFitness float64         `json:"best_fitness"` // best seen so far in the run
	BestGenes   GeneVector      `json:"best_genes"`
	Total       int             `json:"total_generations"`
}

// Observer receives progress notifications. Implementations must not block.
type Observer interface {
	GenerationCompleted(ctx context.Context, report GenerationReport)
	RunCompleted(ctx context.Context, record *BestSolutionRecord)
}

// Result is the outcome of a completed run
type Result struct {
	Best           Individual        `json:"best"`
	BestGeneration int               `json:"best_generation"`
	Stats          []GenerationStats `json:"stats"`
	BestHistory    []float64         `json:"best_history"` // running best after each generation
	Generations    int               `json:"generations"`
	PopSize        int               `json:"pop_size"`
	Evaluations    int               `json:"evaluations"`
	Failures       int               `json:"failures"`
	Duration       time.Duration     `json:"duration"`
}

// Engine runs the generational loop for a single run. It is not safe for
// concurrent use; create one engine per run.
type Engine struct {
	cfg       EvolutionConfig
	evaluator *Evaluator
	rng       *rand.Rand
	runID     string
	state     State
	observers []Observer
	mu        sync.RWMutex
}

// NewEngine validates cfg and prepares a run. Invalid configuration is
// rejected here, before any population is allocated.
func NewEngine(cfg EvolutionConfig, scorer Scorer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: scorer is required", ErrInvalidConfiguration)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		cfg:       cfg,
		evaluator: NewEvaluator(scorer, cfg.EvalTimeout),
		rng:       rand.New(rand.NewSource(seed)), // #nosec G404 -- Non-cryptographic use: evolution needs reproducible randomness
		state:     StateInitialized,
	}, nil
}

// SetRunID tags log lines and reports with id
func (e *Engine) SetRunID(id string) {
	e.runID = id
}

// AddObserver registers an observer for generation reports
func (e *Engine) AddObserver(o Observer) {
	if o != nil {
		e.observers = append(e.observers, o)
	}
}

// State returns the current phase of the loop
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run evolves the population for cfg.Generations rounds. ctx cancellation is
// only honored between generations; a cancelled run returns ErrRunCancelled.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	logger := log.With().Str("component", "evolution").Str("run_id", e.runID).Logger()

	if err := ctx.Err(); err != nil {
		e.setState(StateTerminated)
		return nil, fmt.Errorf("%w before start: %v", ErrRunCancelled, err)
	}

	logger.Info().
		Int("population", e.cfg.PopSize).
		Int("generations", e.cfg.Generations).
		Float64("cxpb", e.cfg.CXPB).
		Float64("mutpb", e.cfg.MutPB).
		Bool("elitism", e.cfg.Elitism).
		Msg("Starting evolution run")

	pop, err := NewSeededPopulation(e.cfg.PopSize, e.cfg.InitialPopulation, e.rng)
	if err != nil {
		e.setState(StateTerminated)
		return nil, err
	}

	result := &Result{
		Generations: e.cfg.Generations,
		PopSize:     e.cfg.PopSize,
	}
	haveBest := false

	// Evaluations run detached from caller cancellation so a generation is
	// always completed before the run stops.
	evalCtx := context.WithoutCancel(ctx)

	for gen := 0; ; gen++ {
		e.setState(StateEvaluating)
		stats := e.evaluate(evalCtx, pop, gen)
		result.Stats = append(result.Stats, stats)
		result.Evaluations += stats.Evaluations
		result.Failures += stats.Failures

		if idx := pop.Best(); idx >= 0 && (!haveBest || pop[idx].Fitness > result.Best.Fitness) {
			result.Best = pop[idx]
			result.BestGeneration = gen
			haveBest = true
		}
		result.BestHistory = append(result.BestHistory, result.Best.Fitness)

		logger.Info().
			Int("generation", gen).
			Int("total", e.cfg.Generations).
			Float64("avg", stats.Avg).
			Float64("max", stats.Max).
			Float64("best_so_far", result.Best.Fitness).
			Int("nevals", stats.Evaluations).
			Int("failures", stats.Failures).
			Msg("Generation complete")

		e.notify(ctx, GenerationReport{
			RunID:       e.runID,
			Stats:       stats,
			BestFitness: result.Best.Fitness,
			BestGenes:   result.Best.Genes,
			Total:       e.cfg.Generations,
		})

		if gen >= e.cfg.Generations {
			break
		}

		if err := ctx.Err(); err != nil {
			e.setState(StateTerminated)
			logger.Warn().Int("generation", gen).Msg("Evolution run cancelled")
			return nil, fmt.Errorf("%w after generation %d: %v", ErrRunCancelled, gen, err)
		}

		e.setState(StateReproducing)
		pop = e.reproduce(pop)
	}

	e.setState(StateTerminated)
	result.Duration = time.Since(startTime)

	logger.Info().
		Float64("best_fitness", result.Best.Fitness).
		Int("best_generation", result.BestGeneration).
		Int("total_evaluations", result.Evaluations).
		Int("failures", result.Failures).
		Dur("duration", result.Duration).
		Msg("Evolution run complete")

	return result, nil
}

// evaluate scores every individual lacking a fitness, in parallel up to
// cfg.Workers, and returns the statistics of the fully evaluated population.
func (e *Engine) evaluate(ctx context.Context, pop Population, gen int) GenerationStats {
	pending := pop.Pending()
	fitness := make([]float64, len(pending))
	failed := make([]bool, len(pending))

	// Seeds are drawn in slot order so results do not depend on scheduling
	seeds := make([]int64, len(pending))
	for slot := range seeds {
		seeds[slot] = e.rng.Int63()
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)

	for slot, idx := range pending {
		g.Go(func() error {
			f, err := e.evaluator.Evaluate(WithEvaluationSeed(ctx, seeds[slot]), pop[idx].Genes)
			if err != nil {
				failed[slot] = true
				log.Warn().
					Err(err).
					Str("run_id", e.runID).
					Int("generation", gen).
					Int("individual", idx).
					Msg("Evaluation failed, using fitness 0")
			}
			fitness[slot] = f
			return nil
		})
	}
	_ = g.Wait() // evaluation goroutines never return errors

	failures := 0
	for slot, idx := range pending {
		pop[idx].Fitness = fitness[slot]
		pop[idx].Evaluated = true
		if failed[slot] {
			failures++
		}
	}

	stats := ComputeStats(gen, pop.Fitnesses())
	stats.Evaluations = len(pending)
	stats.Failures = failures
	return stats
}

// reproduce builds the next population of the same size
func (e *Engine) reproduce(pop Population) Population {
	parents := SelectParents(pop, len(pop), e.cfg.TournamentK, e.rng)
	offspring := Vary(parents, e.cfg, e.rng)

	if e.cfg.Elitism {
		if idx := pop.Best(); idx >= 0 {
			offspring[len(offspring)-1] = pop[idx]
		}
	}
	return offspring
}

func (e *Engine) notify(ctx context.Context, report GenerationReport) {
	for _, o := range e.observers {
		o.GenerationCompleted(ctx, report)
	}
}
