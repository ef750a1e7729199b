package evolution

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu      sync.Mutex
	reports []GenerationReport
	records []*BestSolutionRecord
	onGen   func(GenerationReport)
}

func (o *recordingObserver) GenerationCompleted(_ context.Context, r GenerationReport) {
	o.mu.Lock()
	o.reports = append(o.reports, r)
	o.mu.Unlock()
	if o.onGen != nil {
		o.onGen(r)
	}
}

func (o *recordingObserver) RunCompleted(_ context.Context, r *BestSolutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, r)
}

func testConfig(generations, popSize int) EvolutionConfig {
	cfg := DefaultConfig()
	cfg.Generations = generations
	cfg.PopSize = popSize
	cfg.Seed = 1234
	return cfg
}

func TestNewEngine_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EvolutionConfig)
	}{
		{"zero pop_size", func(c *EvolutionConfig) { c.PopSize = 0 }},
		{"zero generations", func(c *EvolutionConfig) { c.Generations = 0 }},
		{"cxpb above one", func(c *EvolutionConfig) { c.CXPB = 1.5 }},
		{"negative mutpb", func(c *EvolutionConfig) { c.MutPB = -0.1 }},
		{"zero tournament", func(c *EvolutionConfig) { c.TournamentK = 0 }},
		{"zero workers", func(c *EvolutionConfig) { c.Workers = 0 }},
		{"bad seed vector", func(c *EvolutionConfig) { c.InitialPopulation = [][]float64{{0.1, 0.2}} }},
		{"too many seeds", func(c *EvolutionConfig) {
			c.PopSize = 1
			c.InitialPopulation = [][]float64{{0.1, 0.2, 0.3, 0.4}, {0.1, 0.2, 0.3, 0.4}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(5, 10)
			tt.mutate(&cfg)

			engine, err := NewEngine(cfg, constantScorer(0.5))
			require.Error(t, err)
			assert.Nil(t, engine)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)

			var verrs ValidationErrors
			assert.True(t, errors.As(err, &verrs))
		})
	}

	t.Run("nil scorer", func(t *testing.T) {
		_, err := NewEngine(testConfig(1, 5), nil)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})
}

func TestEngine_ConstantScorer(t *testing.T) {
	engine, err := NewEngine(testConfig(1, 5), constantScorer(0.5))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.5, result.Best.Fitness)
	assert.True(t, result.Best.Genes.Valid())
	// Initial population plus one generation
	assert.Len(t, result.Stats, 2)
	assert.Equal(t, 5, result.Stats[0].Evaluations)
	assert.Equal(t, 0, result.Failures)
	assert.Equal(t, StateTerminated, engine.State())
}

func TestEngine_AlwaysFailingScorer(t *testing.T) {
	failing := ScorerFunc(func(context.Context, DecodedStrategy) (float64, error) {
		return 0, errors.New("no market data")
	})

	engine, err := NewEngine(testConfig(2, 6), failing)
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Best.Fitness)
	assert.Equal(t, result.Evaluations, result.Failures)
	assert.True(t, result.Best.Genes.Valid())
}

func TestEngine_Invariants(t *testing.T) {
	cfg := testConfig(15, 20)
	cfg.MutPB = 0.5
	cfg.IndPB = 0.5

	engine, err := NewEngine(cfg, NewLandscapeScorer(7, DefaultLandscapeNoise))
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Stats, cfg.Generations+1)
	require.Len(t, result.BestHistory, cfg.Generations+1)

	for i := 1; i < len(result.BestHistory); i++ {
		assert.GreaterOrEqual(t, result.BestHistory[i], result.BestHistory[i-1],
			"best fitness decreased at generation %d", i)
	}
	for _, s := range result.Stats {
		assert.GreaterOrEqual(t, s.Min, 0.0)
		assert.LessOrEqual(t, s.Max, result.Best.Fitness)
	}
	assert.Equal(t, result.BestHistory[len(result.BestHistory)-1], result.Best.Fitness)
	assert.True(t, result.Best.Genes.Valid())
}

func TestEngine_ReproducePreservesSize(t *testing.T) {
	for _, size := range []int{1, 2, 5, 50} {
		cfg := testConfig(3, size)
		cfg.Elitism = true
		engine, err := NewEngine(cfg, constantScorer(0.1))
		require.NoError(t, err)

		pop, err := NewRandomPopulation(size, rand.New(rand.NewSource(1)))
		require.NoError(t, err)
		engine.evaluate(context.Background(), pop, 0)

		next := engine.reproduce(pop)
		assert.Len(t, next, size)
	}
}

func TestEngine_Elitism(t *testing.T) {
	cfg := testConfig(1, 4)
	cfg.Elitism = true
	cfg.MutPB = 1
	cfg.IndPB = 1
	engine, err := NewEngine(cfg, constantScorer(0))
	require.NoError(t, err)

	pop := evaluatedPopulation(0.1, 0.95, 0.2, 0.3)
	next := engine.reproduce(pop)

	assert.Equal(t, pop[1], next[len(next)-1])
}

func TestEngine_SeededPopulation(t *testing.T) {
	cfg := testConfig(1, 3)
	cfg.InitialPopulation = [][]float64{{0.55, 0.24, 0.0934, 0.5}}
	cfg.CXPB = 0
	cfg.MutPB = 0

	// Reward only the seeded vector so it must win
	target := Decode(GeneVector{0.55, 0.24, 0.0934, 0.5})
	scorer := ScorerFunc(func(_ context.Context, s DecodedStrategy) (float64, error) {
		if s == target {
			return 1, nil
		}
		return 0, nil
	})

	engine, err := NewEngine(cfg, scorer)
	require.NoError(t, err)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Best.Fitness)
	assert.Equal(t, target, Decode(result.Best.Genes))
	assert.Equal(t, 0, result.BestGeneration)
}

func TestEngine_Deterministic(t *testing.T) {
	run := func() *Result {
		cfg := testConfig(8, 16)
		cfg.Workers = 1
		engine, err := NewEngine(cfg, NewLandscapeScorer(5, DefaultLandscapeNoise))
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	assert.Equal(t, a.Best, b.Best)
	assert.Equal(t, a.Stats, b.Stats)
	assert.Equal(t, a.BestHistory, b.BestHistory)
}

func TestEngine_DeterministicWithWorkers(t *testing.T) {
	run := func(scorerSeed int64) *Result {
		cfg := DefaultConfig()
		cfg.Seed = 42
		require.Greater(t, cfg.Workers, 1)
		engine, err := NewEngine(cfg, NewLandscapeScorer(scorerSeed, DefaultLandscapeNoise))
		require.NoError(t, err)
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		return result
	}

	for _, scorerSeed := range []int64{7, 0} {
		want := run(scorerSeed)
		for i := 0; i < 10; i++ {
			got := run(scorerSeed)
			require.Equal(t, want.Stats, got.Stats, "scorer seed %d, repeat %d", scorerSeed, i)
			require.Equal(t, want.Best, got.Best)
		}
	}
}

func TestEngine_ObserverReports(t *testing.T) {
	obs := &recordingObserver{}
	engine, err := NewEngine(testConfig(3, 8), constantScorer(0.25))
	require.NoError(t, err)
	engine.SetRunID("run-1")
	engine.AddObserver(obs)

	_, err = engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, obs.reports, 4)
	for i, r := range obs.reports {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, i, r.Stats.Generation)
		assert.Equal(t, 3, r.Total)
		assert.Equal(t, 0.25, r.BestFitness)
	}
}

func TestEngine_CancelBetweenGenerations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := &recordingObserver{onGen: func(r GenerationReport) {
		if r.Stats.Generation == 1 {
			cancel()
		}
	}}

	engine, err := NewEngine(testConfig(10, 5), constantScorer(0.5))
	require.NoError(t, err)
	engine.AddObserver(obs)

	result, err := engine.Run(ctx)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrRunCancelled)
	// The generation in flight completed before stopping
	assert.Len(t, obs.reports, 2)
	assert.Equal(t, StateTerminated, engine.State())
}

func TestEngine_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := NewEngine(testConfig(1, 5), constantScorer(0.5))
	require.NoError(t, err)

	_, err = engine.Run(ctx)
	assert.ErrorIs(t, err, ErrRunCancelled)
}
