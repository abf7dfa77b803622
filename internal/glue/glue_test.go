package glue

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/wellrecharge/internal/budget"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/types"
)

var start = time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)

var curve = mrc.Model{Kind: mrc.Exponential, Coefficients: []float64{0.05, -0.01}}

var truth = budget.Parameters{MaxStorage: 150, FieldCapacity: 0.4, RechargeCoefficient: 0.2, LagDays: 3, SpecificYield: 0.05}

func series(n int, f func(i int) float64) types.Series {
	s := types.NewSeries(start, n)
	for i := range s.Values {
		s.Values[i] = f(i)
	}
	return s
}

// syntheticInput simulates the true parameters to produce the observed hydrograph,
// then thins the observations to weekly readings.
func syntheticInput(t *testing.T, days int) Input {
	t.Helper()
	f := budget.Forcing{
		Precipitation: series(days, func(i int) float64 {
			if i%4 != 0 {
				return 0
			}
			return 14 + 10*math.Cos(2*math.Pi*float64(i)/365.25)
		}),
		PET: series(days, func(i int) float64 {
			return 2.2 - 2*math.Cos(2*math.Pi*float64(i)/365.25)
		}),
	}
	opts := budget.DefaultOptions()
	opts.InitialLevel = 10
	res, err := budget.Simulate(f, truth, curve, opts)
	if err != nil {
		t.Fatalf("simulating truth: %v", err)
	}
	obs := res.Level.Clone()
	for i := range obs.Values {
		if i%7 != 0 {
			obs.Values[i] = types.Missing()
		}
	}
	return Input{Forcing: f, Observed: obs, Curve: curve}
}

func baseConfig() Config {
	return Config{
		Samples:   60,
		Seed:      42,
		Threshold: -1e6,
		Sampler:   LatinHypercube,
		Workers:   4,
		Ranges: []types.ParameterRange{
			{Name: budget.MaxStorage, Min: 50, Max: 400, Log: true},
			{Name: budget.FieldCapacity, Min: 0.1, Max: 0.7},
			{Name: budget.RechargeCoefficient, Min: 0.02, Max: 0.6},
		},
		Fixed:      types.ParameterSet{budget.LagDays: 3, budget.SpecificYield: 0.05},
		Simulation: budget.DefaultOptions(),
	}
}

func run(t *testing.T, cfg Config, in Input) (*Estimate, *Ensemble, error) {
	t.Helper()
	d, err := NewDriver(cfg, nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}
	return d.Run(context.Background(), in)
}

func TestRunPercentileBandsOrdered(t *testing.T) {
	in := syntheticInput(t, 3*365)
	est, ens, err := run(t, baseConfig(), in)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if est.Behavioral == 0 || est.Behavioral != len(ens.Behavioral()) {
		t.Fatalf("behavioral count %d does not match ensemble (%d)", est.Behavioral, len(ens.Behavioral()))
	}
	if len(est.Recharge) != in.Forcing.Precipitation.Len() {
		t.Fatalf("expected %d daily bands, got %d", in.Forcing.Precipitation.Len(), len(est.Recharge))
	}
	for i, b := range est.Recharge {
		if len(b.Percentiles) != 3 {
			t.Fatalf("day %d: expected 3 percentiles, got %d", i, len(b.Percentiles))
		}
		if !(b.Percentiles[0] <= b.Percentiles[1] && b.Percentiles[1] <= b.Percentiles[2]) {
			t.Fatalf("day %d: percentiles out of order: %v", i, b.Percentiles)
		}
		if b.Mean < 0 {
			t.Fatalf("day %d: negative mean recharge %v", i, b.Mean)
		}
	}
	for _, b := range est.Level {
		if !b.Ordered() {
			t.Fatalf("level band out of order: %v", b.Percentiles)
		}
	}

	sum := 0.0
	for _, m := range ens.Behavioral() {
		sum += m.Weight
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("behavioral weights sum to %v, expected 1", sum)
	}

	if len(est.Annual) != 3 {
		t.Errorf("expected 3 annual totals, got %d", len(est.Annual))
	}
	if len(est.Posterior) != 3 {
		t.Fatalf("expected 3 posteriors, got %d", len(est.Posterior))
	}
	for _, p := range est.Posterior {
		if p.Band.Mean < p.Range.Min || p.Band.Mean > p.Range.Max {
			t.Errorf("%s posterior mean %v outside its range", p.Name, p.Band.Mean)
		}
	}
}

func TestRunIsOrderIndependent(t *testing.T) {
	in := syntheticInput(t, 2*365)

	cfg := baseConfig()
	cfg.Threshold = 0
	cfg.Workers = 1
	serial, _, errSerial := run(t, cfg, in)

	cfg.Workers = 8
	parallel, _, errParallel := run(t, cfg, in)

	if (errSerial == nil) != (errParallel == nil) {
		t.Fatalf("serial err %v, parallel err %v", errSerial, errParallel)
	}
	if errSerial != nil {
		if !errors.Is(errSerial, types.ErrNoBehavioralSets) {
			t.Fatalf("unexpected error: %v", errSerial)
		}
		return
	}
	for i := range serial.Recharge {
		a, b := serial.Recharge[i], parallel.Recharge[i]
		if math.Float64bits(a.Mean) != math.Float64bits(b.Mean) {
			t.Fatalf("day %d: mean differs between worker counts", i)
		}
		for k := range a.Percentiles {
			if math.Float64bits(a.Percentiles[k]) != math.Float64bits(b.Percentiles[k]) {
				t.Fatalf("day %d: percentile %d differs between worker counts", i, k)
			}
		}
	}
}

func TestRunPerfectEnsembleReproducesTruth(t *testing.T) {
	in := syntheticInput(t, 365)
	cfg := baseConfig()
	cfg.Samples = 8
	cfg.Threshold = 0.5
	cfg.Ranges = []types.ParameterRange{
		{Name: budget.MaxStorage, Min: truth.MaxStorage, Max: truth.MaxStorage},
		{Name: budget.FieldCapacity, Min: truth.FieldCapacity, Max: truth.FieldCapacity},
		{Name: budget.RechargeCoefficient, Min: truth.RechargeCoefficient, Max: truth.RechargeCoefficient},
	}

	est, ens, err := run(t, cfg, in)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, m := range ens.Members {
		if m.Score != 1 || !m.Behavioral {
			t.Fatalf("member %d: score %v behavioral %v, expected a perfect behavioral fit", m.ID, m.Score, m.Behavioral)
		}
		if math.Abs(m.Weight-1.0/8) > 1e-12 {
			t.Errorf("member %d: weight %v, expected 1/8", m.ID, m.Weight)
		}
	}

	opts := budget.DefaultOptions()
	opts.InitialLevel = in.Observed.Values[0]
	res, err := budget.Simulate(in.Forcing, truth, curve, opts)
	if err != nil {
		t.Fatalf("Simulate returned error: %v", err)
	}
	for i, b := range est.Recharge {
		want := res.Recharge.Values[i]
		for _, p := range b.Percentiles {
			if p != want {
				t.Fatalf("day %d: percentile %v, expected %v", i, p, want)
			}
		}
		if math.Abs(b.Mean-want) > 1e-9 {
			t.Fatalf("day %d: mean %v, expected %v", i, b.Mean, want)
		}
	}
}

func TestRunThresholdAboveMaximumScore(t *testing.T) {
	in := syntheticInput(t, 365)
	cfg := baseConfig()
	cfg.Samples = 100
	cfg.Seed = 2024
	cfg.Threshold = 1.5 // Nash–Sutcliffe never exceeds 1

	var first *types.NoBehavioralSetsError
	for attempt := 0; attempt < 2; attempt++ {
		est, ens, err := run(t, cfg, in)
		if !errors.Is(err, types.ErrNoBehavioralSets) {
			t.Fatalf("attempt %d: expected ErrNoBehavioralSets, got %v", attempt, err)
		}
		if est != nil {
			t.Fatalf("attempt %d: expected no estimate", attempt)
		}
		if ens == nil || len(ens.Members) != 100 {
			t.Fatalf("attempt %d: expected the full ensemble for diagnostics", attempt)
		}

		var nb *types.NoBehavioralSetsError
		if !errors.As(err, &nb) {
			t.Fatalf("attempt %d: expected NoBehavioralSetsError, got %T", attempt, err)
		}
		if first == nil {
			first = nb
			continue
		}
		if *nb != *first {
			t.Errorf("runs with the same seed differ: %+v vs %+v", nb, first)
		}
	}
}

func TestRunAllMembersFailWithForcingGap(t *testing.T) {
	in := syntheticInput(t, 365)
	for i := 100; i < 110; i++ {
		in.Forcing.Precipitation.Values[i] = types.Missing()
	}
	cfg := baseConfig()
	cfg.Samples = 20
	cfg.Simulation.MaxGapDays = 3

	est, ens, err := run(t, cfg, in)
	if !errors.Is(err, types.ErrNoBehavioralSets) {
		t.Fatalf("expected ErrNoBehavioralSets, got %v", err)
	}
	if est != nil {
		t.Fatal("expected no estimate when every member fails")
	}

	var nb *types.NoBehavioralSetsError
	if !errors.As(err, &nb) || nb.Failed != 20 || nb.Samples != 20 {
		t.Fatalf("unexpected error details: %+v", nb)
	}

	failures := multierr.Errors(ens.Failures())
	if len(failures) != 20 {
		t.Fatalf("expected 20 member failures, got %d", len(failures))
	}
	for _, f := range failures {
		if !errors.Is(f, types.ErrForcingGap) {
			t.Errorf("expected a forcing gap failure, got %v", f)
		}
	}
	for _, m := range ens.Members {
		if !errors.Is(m.Err(), types.ErrForcingGap) || !math.IsNaN(m.Score) {
			t.Errorf("member %d: err %v score %v", m.ID, m.Err(), m.Score)
		}
	}
}

func TestRunCancellation(t *testing.T) {
	in := syntheticInput(t, 365)
	d, err := NewDriver(baseConfig(), nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	est, ens, err := d.Run(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if est != nil || ens == nil {
		t.Fatalf("expected a partial ensemble and no estimate")
	}
}

func TestRunCancelledBetweenSimulations(t *testing.T) {
	in := syntheticInput(t, 365)
	cfg := baseConfig()
	cfg.Samples = 200
	cfg.Workers = 3
	const stopAfter = 5

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.Progress = func(done, total int) {
		if done == stopAfter {
			cancel()
		}
	}
	d, err := NewDriver(cfg, nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}

	est, ens, err := d.Run(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if est != nil || ens == nil {
		t.Fatalf("expected a partial ensemble and no estimate")
	}

	evaluated := 0
	for _, m := range ens.Members {
		if !errors.Is(m.Err(), errNotEvaluated) {
			evaluated++
		}
	}
	if evaluated < stopAfter || evaluated > stopAfter+cfg.Workers {
		t.Errorf("%d members evaluated, expected between %d and %d", evaluated, stopAfter, stopAfter+cfg.Workers)
	}
}

func TestRunReportsProgress(t *testing.T) {
	in := syntheticInput(t, 200)
	cfg := baseConfig()
	cfg.Samples = 25

	var calls atomic.Int64
	last := 0
	cfg.Progress = func(done, total int) {
		calls.Add(1)
		if total != 25 || done != last+1 {
			t.Errorf("progress(%d, %d) after %d", done, total, last)
		}
		last = done
	}
	if _, _, err := run(t, cfg, in); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls.Load() != 25 {
		t.Errorf("progress called %d times, expected 25", calls.Load())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{name: "no samples", edit: func(c *Config) { c.Samples = 0 }},
		{name: "inverted range", edit: func(c *Config) { c.Ranges[1] = types.ParameterRange{Name: budget.FieldCapacity, Min: 0.6, Max: 0.2} }},
		{name: "log range through zero", edit: func(c *Config) { c.Ranges[0].Min = 0 }},
		{name: "duplicate range", edit: func(c *Config) { c.Ranges = append(c.Ranges, c.Ranges[0]) }},
		{name: "sampled and fixed", edit: func(c *Config) { c.Fixed[budget.MaxStorage] = 100 }},
		{name: "unphysical bound", edit: func(c *Config) { c.Ranges[1].Max = 1.5 }},
		{name: "parameter neither sampled nor fixed", edit: func(c *Config) { delete(c.Fixed, budget.SpecificYield) }},
		{name: "unknown likelihood", edit: func(c *Config) { c.Likelihood = "rmse" }},
		{name: "bad percentile", edit: func(c *Config) { c.Percentiles = []float64{0.5, 95} }},
		{name: "zero percentile", edit: func(c *Config) { c.Percentiles = []float64{0, 0.5} }},
		{name: "unit percentile", edit: func(c *Config) { c.Percentiles = []float64{0.5, 1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.edit(&cfg)
			if _, err := NewDriver(cfg, nil); !errors.Is(err, types.ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	d, err := NewDriver(baseConfig(), nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}
	if got := d.Config(); got.Likelihood != NSE || len(got.Percentiles) != 3 {
		t.Errorf("defaults not applied: likelihood %q percentiles %v", got.Likelihood, got.Percentiles)
	}
}

func TestLatinHypercubeStratifies(t *testing.T) {
	n := 50
	ranges := []types.ParameterRange{
		{Name: "a", Min: 0, Max: 1},
		{Name: "b", Min: 1, Max: 1000, Log: true},
	}
	sets := Sample(rand.New(rand.NewSource(1)), LatinHypercube, ranges, nil, n)

	seen := make(map[int]bool, n)
	for _, s := range sets {
		bin := int(s["a"] * float64(n))
		if seen[bin] {
			t.Fatalf("bin %d sampled twice", bin)
		}
		seen[bin] = true
		if !ranges[1].Contains(s["b"]) {
			t.Errorf("log sample %v outside [1, 1000]", s["b"])
		}
	}

	again := Sample(rand.New(rand.NewSource(1)), LatinHypercube, ranges, nil, n)
	for k := range sets {
		if sets[k]["a"] != again[k]["a"] || sets[k]["b"] != again[k]["b"] {
			t.Fatalf("sample %d not reproducible", k)
		}
	}
}

func TestLikelihoods(t *testing.T) {
	obs := []float64{1, 2, 3, 4, 5}
	if got := NashSutcliffe(obs, obs); got != 1 {
		t.Errorf("NSE of a perfect fit = %v, expected 1", got)
	}
	if got := NashSutcliffe([]float64{3, 3, 3, 3, 3}, obs); math.Abs(got) > 1e-12 {
		t.Errorf("NSE of the mean = %v, expected 0", got)
	}
	if got := KlingGupta(obs, obs); math.Abs(got-1) > 1e-12 {
		t.Errorf("KGE of a perfect fit = %v, expected 1", got)
	}
	shifted := []float64{11, 12, 13, 14, 15}
	if KlingGupta(shifted, obs) >= KlingGupta(obs, obs) {
		t.Error("a biased simulation should score lower")
	}

	sim := types.NewSeries(start, 3)
	observed := types.NewSeries(start, 3)
	sim.Values[0], observed.Values[0] = 1, 1
	if _, err := Score(NSE, sim, observed); !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestWeightedBand(t *testing.T) {
	b := weightedBand([]float64{3, 1, 2}, []float64{0, 0, 0}, DefaultPercentiles)
	if b.Mean != 2 || b.Percentiles[1] != 2 || b.Count != 3 {
		t.Errorf("equal weights: got %+v", b)
	}

	b = weightedBand([]float64{10, 0}, []float64{0.9, 0.1}, DefaultPercentiles)
	if math.Abs(b.Mean-9) > 1e-12 || b.Percentiles[0] != 0 || b.Percentiles[1] != 10 {
		t.Errorf("weighted band: got %+v", b)
	}

	b = weightedBand(nil, nil, DefaultPercentiles)
	if !types.IsMissing(b.Mean) || !types.IsMissing(b.Percentiles[2]) {
		t.Errorf("empty band should be missing, got %+v", b)
	}
}
