// Package glue runs Generalized Likelihood Uncertainty Estimation over the soil
// moisture budget: it samples parameter sets, simulates each one, scores the
// simulated hydrograph against the observed one and aggregates the behavioral
// members into weighted recharge bands.
package glue

import (
	"math"
	"runtime"
	"sort"

	"github.com/chrissnell/wellrecharge/internal/budget"
	"github.com/chrissnell/wellrecharge/internal/types"
)

// Likelihood names a goodness-of-fit measure.
type Likelihood string

const (
	// NSE is the Nash–Sutcliffe efficiency.
	NSE Likelihood = "nse"
	// KGE is the Kling–Gupta efficiency with a datum-free bias term.
	KGE Likelihood = "kge"
)

// Sampler names a strategy for drawing parameter sets.
type Sampler string

const (
	// Uniform draws every parameter independently.
	Uniform Sampler = "uniform"
	// LatinHypercube stratifies every parameter into Samples equal-probability bins.
	LatinHypercube Sampler = "lhs"
)

// DefaultPercentiles are the bands reported when none are configured.
var DefaultPercentiles = []float64{0.05, 0.5, 0.95}

// Config holds everything an ensemble run needs apart from the data.
type Config struct {
	Samples    int
	Seed       int64
	Threshold  float64
	Likelihood Likelihood
	Sampler    Sampler

	// Workers bounds the number of concurrent simulations. Zero uses every CPU.
	Workers int

	// Percentiles are the quantiles (0-1) of every reported band.
	Percentiles []float64

	// Ranges are sampled; Fixed supplies the remaining model parameters.
	Ranges []types.ParameterRange
	Fixed  types.ParameterSet

	// Simulation holds the non-sampled simulator options. The driver sets the
	// level anchor from the first observed level.
	Simulation budget.Options

	// KeepSeries retains recharge and level series on every successful member,
	// not only on behavioral ones.
	KeepSeries bool

	// Progress, when set, is called after every completed simulation. Calls are
	// serialized and done increases by one each time.
	Progress func(done, total int)
}

// Validate checks the configuration and fills defaults. It returns an
// InvalidParameterError describing the first problem found.
func (c *Config) Validate() error {
	if c.Samples <= 0 {
		return types.InvalidParameter("glue.samples", "must be positive, got %d", c.Samples)
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) {
		return types.InvalidParameter("glue.threshold", "must be finite")
	}

	switch c.Likelihood {
	case "":
		c.Likelihood = NSE
	case NSE, KGE:
	default:
		return types.InvalidParameter("glue.likelihood", "unknown likelihood %q", c.Likelihood)
	}

	switch c.Sampler {
	case "":
		c.Sampler = Uniform
	case Uniform, LatinHypercube:
	default:
		return types.InvalidParameter("glue.sampler", "unknown sampler %q", c.Sampler)
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if len(c.Percentiles) == 0 {
		c.Percentiles = append([]float64(nil), DefaultPercentiles...)
	}
	for _, p := range c.Percentiles {
		if !(p > 0 && p < 1) {
			return types.InvalidParameter("glue.percentiles", "%g outside (0, 1)", p)
		}
	}
	sort.Float64s(c.Percentiles)

	if len(c.Ranges) == 0 {
		return types.InvalidParameter("glue.parameters", "no parameter ranges to sample")
	}
	seen := make(map[string]bool, len(c.Ranges))
	for _, r := range c.Ranges {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Name] {
			return types.InvalidParameter(r.Name, "range given twice")
		}
		if _, ok := c.Fixed[r.Name]; ok {
			return types.InvalidParameter(r.Name, "both sampled and fixed")
		}
		seen[r.Name] = true
	}
	sort.Slice(c.Ranges, func(i, j int) bool { return c.Ranges[i].Name < c.Ranges[j].Name })

	// Both corners of the hypercube must be physically valid parameter sets.
	for _, corner := range []func(types.ParameterRange) float64{
		func(r types.ParameterRange) float64 { return r.Min },
		func(r types.ParameterRange) float64 { return r.Max },
	} {
		set := c.Fixed.Clone()
		for _, r := range c.Ranges {
			set[r.Name] = corner(r)
		}
		if _, err := budget.ParametersFromSet(set); err != nil {
			return err
		}
	}
	return nil
}
