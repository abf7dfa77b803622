package glue

import (
	"math/rand"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Sample draws n parameter sets from the ranges using rng. Ranges are visited in the
// order given, so the same seed and ranges always yield the same sets.
func Sample(rng *rand.Rand, sampler Sampler, ranges []types.ParameterRange, fixed types.ParameterSet, n int) []types.ParameterSet {
	u := unitSamples(rng, sampler, len(ranges), n)

	sets := make([]types.ParameterSet, n)
	for k := range sets {
		set := fixed.Clone()
		for j, r := range ranges {
			set[r.Name] = r.Transform(u[j][k])
		}
		sets[k] = set
	}
	return sets
}

// unitSamples returns p rows of n quantiles in [0, 1).
func unitSamples(rng *rand.Rand, sampler Sampler, p, n int) [][]float64 {
	u := make([][]float64, p)
	for j := range u {
		u[j] = make([]float64, n)
	}

	switch sampler {
	case LatinHypercube:
		for j := 0; j < p; j++ {
			perm := rng.Perm(n)
			for k := 0; k < n; k++ {
				u[j][k] = (float64(perm[k]) + rng.Float64()) / float64(n)
			}
		}
	default:
		for k := 0; k < n; k++ {
			for j := 0; j < p; j++ {
				u[j][k] = rng.Float64()
			}
		}
	}
	return u
}
