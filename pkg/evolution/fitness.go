package evolution

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Scorer computes the raw fitness of a decoded strategy. Implementations may
// call a live backtesting engine; they should honor ctx cancellation.
type Scorer interface {
	Score(ctx context.Context, strategy DecodedStrategy) (float64, error)
}

// ScorerFunc adapts a function to the Scorer interface
type ScorerFunc func(ctx context.Context, strategy DecodedStrategy) (float64, error)

// Score calls f
func (f ScorerFunc) Score(ctx context.Context, strategy DecodedStrategy) (float64, error) {
	return f(ctx, strategy)
}

// Evaluator turns a scorer into a bounded, non-negative fitness function
type Evaluator struct {
	scorer  Scorer
	timeout time.Duration
}

// NewEvaluator wraps scorer. A non-positive timeout falls back to DefaultEvalTimeout.
func NewEvaluator(scorer Scorer, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	return &Evaluator{scorer: scorer, timeout: timeout}
}

type scoreResult struct {
	score float64
	err   error
}

// Evaluate decodes genes, scores them within the timeout and floors the result
// at zero. Any failure is returned wrapped in ErrEvaluationFailure together
// with a fitness of 0, which is what the engine records.
func (e *Evaluator) Evaluate(ctx context.Context, genes GeneVector) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	strategy := Decode(genes)
	done := make(chan scoreResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- scoreResult{err: fmt.Errorf("scorer panic: %v", r)}
			}
		}()
		score, err := e.scorer.Score(ctx, strategy)
		done <- scoreResult{score: score, err: err}
	}()

	var res scoreResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: scorer timed out after %s: %v", ErrEvaluationFailure, e.timeout, ctx.Err())
	}

	if res.err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEvaluationFailure, res.err)
	}
	if math.IsNaN(res.score) || math.IsInf(res.score, 0) {
		return 0, fmt.Errorf("%w: non-finite score %v", ErrEvaluationFailure, res.score)
	}

	return math.Max(0, res.score), nil
}

// DefaultLandscapeNoise is the standard deviation of the market-variability noise
const DefaultLandscapeNoise = 0.05

// Landscape is the synthetic fitness surface: it rewards RSI thresholds around
// 50-60, MACD fast near 12, MACD slow near 26 and moderate holding periods.
func Landscape(s DecodedStrategy) float64 {
	rsi := float64(s.RSIThreshold)
	fast := float64(s.MACDFast)
	slow := float64(s.MACDSlow)
	hold := float64(s.HoldPeriod)

	return math.Sin(rsi/20)*0.4 +
		math.Exp(-(fast-12)*(fast-12)/100)*0.3 +
		math.Exp(-(slow-26)*(slow-26)/400)*0.2 +
		math.Sin(hold/10)*0.1
}

type evaluationSeedKey struct{}

// WithEvaluationSeed attaches the random seed drawn for one evaluation. The
// engine draws these from the run seed before fanning out, so stochastic
// scorers stay reproducible however the workers interleave.
func WithEvaluationSeed(ctx context.Context, seed int64) context.Context {
	return context.WithValue(ctx, evaluationSeedKey{}, seed)
}

// EvaluationSeed returns the seed attached by WithEvaluationSeed
func EvaluationSeed(ctx context.Context) (int64, bool) {
	seed, ok := ctx.Value(evaluationSeedKey{}).(int64)
	return seed, ok
}

// LandscapeScorer scores strategies on the synthetic Landscape plus seeded
// gaussian noise emulating market variability. Inside a run the noise comes
// from the per-evaluation seed mixed with the scorer seed; standalone calls
// draw from the scorer's own source.
type LandscapeScorer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	seed  int64
	noise float64
}

// NewLandscapeScorer creates a landscape scorer. A zero noise disables the
// random term entirely. A zero seed leaves the noise to the run seed alone.
func NewLandscapeScorer(seed int64, noise float64) *LandscapeScorer {
	source := seed
	if source == 0 {
		source = time.Now().UnixNano()
	}
	return &LandscapeScorer{
		rng:   rand.New(rand.NewSource(source)), // #nosec G404 -- reproducible simulation noise, not security sensitive
		seed:  seed,
		noise: noise,
	}
}

// Score implements Scorer
func (s *LandscapeScorer) Score(ctx context.Context, strategy DecodedStrategy) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	score := Landscape(strategy)
	if s.noise <= 0 {
		return score, nil
	}

	if evalSeed, ok := EvaluationSeed(ctx); ok {
		rng := rand.New(rand.NewSource(evalSeed ^ s.seed)) // #nosec G404 -- reproducible simulation noise
		return score + rng.NormFloat64()*s.noise, nil
	}

	s.mu.Lock()
	score += s.rng.NormFloat64() * s.noise
	s.mu.Unlock()
	return score, nil
}
