package evolution

import (
	"fmt"
	"math"
	"time"
)

// Default run parameters
const (
	DefaultPopSize       = 50
	DefaultGenerations   = 10
	DefaultCXPB          = 0.7
	DefaultMutPB         = 0.2
	DefaultTournamentK   = 3
	DefaultBlendAlpha    = 0.5
	DefaultMutationSigma = 0.2
	DefaultIndPB         = 0.2
	DefaultWorkers       = 4
	DefaultEvalTimeout   = 5 * time.Second
)

// EvolutionConfig carries every knob of a run. It is handed to the Engine at
// construction so independent runs never share operator state.
type EvolutionConfig struct {
	PopSize       int     `json:"pop_size" mapstructure:"pop_size"`
	Generations   int     `json:"generations" mapstructure:"generations"`
	CXPB          float64 `json:"cxpb" mapstructure:"cxpb"`                     // crossover probability per pair
	MutPB         float64 `json:"mutpb" mapstructure:"mutpb"`                   // mutation probability per offspring
	TournamentK   int     `json:"tournament_k" mapstructure:"tournament_k"`     // tournament size
	BlendAlpha    float64 `json:"blend_alpha" mapstructure:"blend_alpha"`       // blend crossover extrapolation
	MutationSigma float64 `json:"mutation_sigma" mapstructure:"mutation_sigma"` // gaussian noise std dev
	IndPB         float64 `json:"indpb" mapstructure:"indpb"`                   // per-gene mutation probability

	// Elitism carries the current best individual unchanged into the next
	// population. Off by default.
	Elitism bool `json:"elitism" mapstructure:"elitism"`

	Workers     int           `json:"workers" mapstructure:"workers"`           // parallel evaluations per generation
	EvalTimeout time.Duration `json:"eval_timeout" mapstructure:"eval_timeout"` // bound on a single scorer call
	Seed        int64         `json:"seed" mapstructure:"seed"`                 // 0 = time based

	// InitialPopulation optionally seeds the first individuals of the run
	InitialPopulation [][]float64 `json:"initial_population,omitempty" mapstructure:"initial_population"`
}

// DefaultConfig returns the configuration used when the caller specifies nothing
func DefaultConfig() EvolutionConfig {
	return EvolutionConfig{
		PopSize:       DefaultPopSize,
		Generations:   DefaultGenerations,
		CXPB:          DefaultCXPB,
		MutPB:         DefaultMutPB,
		TournamentK:   DefaultTournamentK,
		BlendAlpha:    DefaultBlendAlpha,
		MutationSigma: DefaultMutationSigma,
		IndPB:         DefaultIndPB,
		Workers:       DefaultWorkers,
		EvalTimeout:   DefaultEvalTimeout,
	}
}

// Validate checks every precondition of a run. The returned error wraps
// ErrInvalidConfiguration.
func (c EvolutionConfig) Validate() error {
	var errs ValidationErrors

	if c.PopSize < 1 {
		errs = append(errs, ValidationError{Field: "pop_size", Message: fmt.Sprintf("must be >= 1, got %d", c.PopSize)})
	}
	if c.Generations < 1 {
		errs = append(errs, ValidationError{Field: "generations", Message: fmt.Sprintf("must be >= 1, got %d", c.Generations)})
	}
	if c.TournamentK < 1 {
		errs = append(errs, ValidationError{Field: "tournament_k", Message: fmt.Sprintf("must be >= 1, got %d", c.TournamentK)})
	}
	if c.Workers < 1 {
		errs = append(errs, ValidationError{Field: "workers", Message: fmt.Sprintf("must be >= 1, got %d", c.Workers)})
	}
	if c.EvalTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "eval_timeout", Message: "must be positive"})
	}

	probabilities := []struct {
		field string
		value float64
	}{{"cxpb", c.CXPB}, {"mutpb", c.MutPB}, {"indpb", c.IndPB}}
	for _, p := range probabilities {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 1 {
			errs = append(errs, ValidationError{Field: p.field, Message: fmt.Sprintf("probability must be in [0,1], got %v", p.value)})
		}
	}
	if math.IsNaN(c.BlendAlpha) || c.BlendAlpha < 0 {
		errs = append(errs, ValidationError{Field: "blend_alpha", Message: "must be >= 0"})
	}
	if math.IsNaN(c.MutationSigma) || c.MutationSigma < 0 {
		errs = append(errs, ValidationError{Field: "mutation_sigma", Message: "must be >= 0"})
	}

	if c.PopSize >= 1 && len(c.InitialPopulation) > c.PopSize {
		errs = append(errs, ValidationError{
			Field:   "initial_population",
			Message: fmt.Sprintf("%d seed vectors exceed pop_size %d", len(c.InitialPopulation), c.PopSize),
		})
	}
	for i, genes := range c.InitialPopulation {
		if _, err := ParseGeneVector(genes); err != nil {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("initial_population[%d]", i), Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
