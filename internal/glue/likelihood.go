package glue

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// minOverlap is the number of jointly valid days needed to score a simulation.
const minOverlap = 2

// Overlap returns the simulated and observed values on dates where both are valid.
func Overlap(simulated, observed types.Series) (sim, obs []float64) {
	for i, v := range simulated.Values {
		if types.IsMissing(v) {
			continue
		}
		o := observed.At(simulated.Date(i))
		if types.IsMissing(o) {
			continue
		}
		sim = append(sim, v)
		obs = append(obs, o)
	}
	return sim, obs
}

// Score computes the likelihood of simulated against observed over their
// overlapping valid dates.
func Score(kind Likelihood, simulated, observed types.Series) (float64, error) {
	sim, obs := Overlap(simulated, observed)
	if len(sim) < minOverlap {
		return math.NaN(), &types.InsufficientDataError{What: "overlapping water level days", Found: len(sim), Required: minOverlap}
	}
	if stat.Variance(obs, nil) == 0 {
		return math.NaN(), &types.InsufficientDataError{What: "distinct observed levels", Found: 1, Required: 2}
	}

	switch kind {
	case KGE:
		return KlingGupta(sim, obs), nil
	default:
		return NashSutcliffe(sim, obs), nil
	}
}

// NashSutcliffe returns 1 - Σ(s-o)² / Σ(o-ō)².
func NashSutcliffe(sim, obs []float64) float64 {
	mean := stat.Mean(obs, nil)
	resid := make([]float64, len(obs))
	dev := make([]float64, len(obs))
	for i := range obs {
		resid[i] = (sim[i] - obs[i]) * (sim[i] - obs[i])
		dev[i] = (obs[i] - mean) * (obs[i] - mean)
	}
	return 1 - floats.Sum(resid)/floats.Sum(dev)
}

// KlingGupta returns 1 - sqrt((r-1)² + (α-1)² + b²) where r is the linear correlation,
// α the ratio of standard deviations and b the mean error scaled by the observed
// standard deviation. Scaling the bias by σ instead of μ keeps the score independent of
// the level datum.
func KlingGupta(sim, obs []float64) float64 {
	ms, ss := stat.MeanStdDev(sim, nil)
	mo, so := stat.MeanStdDev(obs, nil)

	r := 0.0
	if ss > 0 {
		r = stat.Correlation(sim, obs, nil)
	}
	alpha := ss / so
	b := (ms - mo) / so
	return 1 - math.Sqrt((r-1)*(r-1)+(alpha-1)*(alpha-1)+b*b)
}
