// Package evolution implements the evolutionary search that tunes RSI/MACD
// strategy parameters: gene encoding, genetic operators, the generation loop
// and persistence of the best solution found.
package evolution

import (
	"fmt"
	"math"
	"math/rand"
)

// NumGenes is the fixed length of every gene vector
const NumGenes = 4

// Gene positions
const (
	GeneRSIThreshold = iota
	GeneMACDFast
	GeneMACDSlow
	GeneHoldPeriod
)

// GeneVector is a normalized strategy encoding. Every component lies in [0,1].
type GeneVector [NumGenes]float64

// RandomGeneVector draws each component uniformly from [0,1)
func RandomGeneVector(rng *rand.Rand) GeneVector {
	var g GeneVector
	for i := range g {
		g[i] = rng.Float64()
	}
	return g
}

// ParseGeneVector converts an untyped slice (API payloads, seed populations)
// into a GeneVector, rejecting wrong lengths and out-of-range values.
func ParseGeneVector(values []float64) (GeneVector, error) {
	var g GeneVector
	if len(values) != NumGenes {
		return g, fmt.Errorf("%w: gene vector must have %d components, got %d",
			ErrInvalidConfiguration, NumGenes, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return g, fmt.Errorf("%w: gene %d = %v is outside [0,1]", ErrInvalidConfiguration, i, v)
		}
		g[i] = v
	}
	return g, nil
}

// Clamped returns a copy with every component forced into [0,1]
func (g GeneVector) Clamped() GeneVector {
	for i, v := range g {
		g[i] = clamp01(v)
	}
	return g
}

// Valid reports whether every component is a finite value in [0,1]
func (g GeneVector) Valid() bool {
	for _, v := range g {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// Slice returns the genes as a plain slice (JSON friendly)
func (g GeneVector) Slice() []float64 {
	out := make([]float64, NumGenes)
	copy(out, g[:])
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
