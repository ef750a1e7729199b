package evolution

import (
	"math"
)

// GenerationStats summarizes the fitness of one fully evaluated population
type GenerationStats struct {
	Generation  int     `json:"gen" yaml:"gen"`
	Avg         float64 `json:"avg" yaml:"avg"`
	Std         float64 `json:"std" yaml:"std"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	Evaluations int     `json:"nevals" yaml:"nevals"`     // individuals scored this round
	Failures    int     `json:"failures" yaml:"failures"` // evaluations recovered as fitness 0
}

// ComputeStats aggregates fitness values using the population standard
// deviation. An empty input yields a zero entry.
func ComputeStats(generation int, fitness []float64) GenerationStats {
	stats := GenerationStats{Generation: generation}
	if len(fitness) == 0 {
		return stats
	}

	stats.Min = fitness[0]
	stats.Max = fitness[0]
	sum := 0.0
	for _, f := range fitness {
		sum += f
		stats.Min = math.Min(stats.Min, f)
		stats.Max = math.Max(stats.Max, f)
	}
	stats.Avg = sum / float64(len(fitness))

	variance := 0.0
	for _, f := range fitness {
		d := f - stats.Avg
		variance += d * d
	}
	stats.Std = math.Sqrt(variance / float64(len(fitness)))

	return stats
}
