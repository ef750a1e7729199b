package evolution

import (
	"fmt"
	"math/rand"
)

// Individual pairs a gene vector with its cached fitness. Fitness is only
// meaningful when Evaluated is true.
type Individual struct {
	Genes     GeneVector `json:"genes"`
	Fitness   float64    `json:"fitness"`
	Evaluated bool       `json:"evaluated"`
}

// NewIndividual creates an unevaluated individual
func NewIndividual(genes GeneVector) Individual {
	return Individual{Genes: genes}
}

// Population is an ordered collection of individuals. Order only matters for
// deterministic tie-breaking.
type Population []Individual

// NewRandomPopulation creates size individuals with uniformly random genes
func NewRandomPopulation(size int, rng *rand.Rand) (Population, error) {
	return NewSeededPopulation(size, nil, rng)
}

// NewSeededPopulation places the seed vectors first and fills the remaining
// slots with random individuals.
func NewSeededPopulation(size int, seeds [][]float64, rng *rand.Rand) (Population, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: pop_size must be >= 1, got %d", ErrInvalidConfiguration, size)
	}
	if len(seeds) > size {
		return nil, fmt.Errorf("%w: %d seed vectors exceed pop_size %d", ErrInvalidConfiguration, len(seeds), size)
	}

	pop := make(Population, 0, size)
	for _, values := range seeds {
		genes, err := ParseGeneVector(values)
		if err != nil {
			return nil, err
		}
		pop = append(pop, NewIndividual(genes))
	}
	for len(pop) < size {
		pop = append(pop, NewIndividual(RandomGeneVector(rng)))
	}
	return pop, nil
}

// Best returns the index of the fittest evaluated individual, first one on
// ties. It returns -1 when nothing has been evaluated.
func (p Population) Best() int {
	best := -1
	for i, ind := range p {
		if !ind.Evaluated {
			continue
		}
		if best < 0 || ind.Fitness > p[best].Fitness {
			best = i
		}
	}
	return best
}

// Fitnesses returns the fitness of every evaluated individual
func (p Population) Fitnesses() []float64 {
	out := make([]float64, 0, len(p))
	for _, ind := range p {
		if ind.Evaluated {
			out = append(out, ind.Fitness)
		}
	}
	return out
}

// Pending returns the indices of individuals that still need a fitness
func (p Population) Pending() []int {
	var idx []int
	for i, ind := range p {
		if !ind.Evaluated {
			idx = append(idx, i)
		}
	}
	return idx
}
