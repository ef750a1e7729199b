package evolution

import (
	"math/rand"
)

// SelectTournament samples k individuals uniformly with replacement and
// returns the fittest. Ties keep the first contestant drawn.
func SelectTournament(pop Population, k int, rng *rand.Rand) Individual {
	best := pop[rng.Intn(len(pop))]
	for i := 1; i < k; i++ {
		contestant := pop[rng.Intn(len(pop))]
		if contestant.Fitness > best.Fitness {
			best = contestant
		}
	}
	return best
}

// SelectParents runs n independent tournaments
func SelectParents(pop Population, n, k int, rng *rand.Rand) Population {
	parents := make(Population, n)
	for i := range parents {
		parents[i] = SelectTournament(pop, k, rng)
	}
	return parents
}

// BlendCrossover recombines two parents. For every gene a fresh
// gamma ~ U[-alpha, 1+alpha] interpolates (or mildly extrapolates) between
// the parents; both children are clamped to [0,1].
func BlendCrossover(a, b GeneVector, alpha float64, rng *rand.Rand) (GeneVector, GeneVector) {
	var c1, c2 GeneVector
	for i := range a {
		gamma := (1+2*alpha)*rng.Float64() - alpha
		c1[i] = clamp01(a[i] + gamma*(b[i]-a[i]))
		c2[i] = clamp01(b[i] + gamma*(a[i]-b[i]))
	}
	return c1, c2
}

// GaussianMutation adds N(0, sigma) noise to each gene with probability indpb
// and clamps the result. It reports whether any gene was touched.
func GaussianMutation(g GeneVector, sigma, indpb float64, rng *rand.Rand) (GeneVector, bool) {
	mutated := false
	for i := range g {
		if rng.Float64() < indpb {
			g[i] = clamp01(g[i] + rng.NormFloat64()*sigma)
			mutated = true
		}
	}
	return g, mutated
}

// Vary applies crossover to consecutive pairs and mutation to every offspring.
// Offspring are copies; individuals left untouched keep their cached fitness,
// anything recombined or mutated is marked for re-evaluation.
func Vary(parents Population, cfg EvolutionConfig, rng *rand.Rand) Population {
	offspring := make(Population, len(parents))
	copy(offspring, parents)

	for i := 1; i < len(offspring); i += 2 {
		if rng.Float64() < cfg.CXPB {
			c1, c2 := BlendCrossover(offspring[i-1].Genes, offspring[i].Genes, cfg.BlendAlpha, rng)
			offspring[i-1] = NewIndividual(c1)
			offspring[i] = NewIndividual(c2)
		}
	}

	for i := range offspring {
		if rng.Float64() < cfg.MutPB {
			genes, changed := GaussianMutation(offspring[i].Genes, cfg.MutationSigma, cfg.IndPB, rng)
			if changed {
				offspring[i] = NewIndividual(genes)
			}
		}
	}

	return offspring
}
