package glue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/wellrecharge/internal/budget"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/types"
)

var errNotEvaluated = errors.New("not evaluated before cancellation")

// Input is the read-only data shared by every ensemble member.
type Input struct {
	Forcing  budget.Forcing
	Observed types.Series
	Curve    mrc.Model
}

// Driver evaluates ensembles for one configuration.
type Driver struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// NewDriver validates cfg and returns a driver. A nil logger disables logging.
func NewDriver(cfg Config, logger *zap.SugaredLogger) (*Driver, error) {
	cfg.Ranges = append([]types.ParameterRange(nil), cfg.Ranges...)
	cfg.Percentiles = append([]float64(nil), cfg.Percentiles...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver{cfg: cfg, logger: logger}, nil
}

// Config returns the validated configuration, defaults included.
func (d *Driver) Config() Config {
	return d.cfg
}

// Run samples, simulates and scores the ensemble and aggregates its behavioral
// members. The returned Ensemble is non-nil whenever sampling succeeded, including
// when the error is a NoBehavioralSetsError or a cancellation, so that callers can
// inspect the members.
//
// Cancellation is checked before each simulation starts; a running simulation is
// always completed.
func (d *Driver) Run(ctx context.Context, in Input) (*Estimate, *Ensemble, error) {
	opts, err := d.simulationOptions(in)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(d.cfg.Seed))
	sets := Sample(rng, d.cfg.Sampler, d.cfg.Ranges, d.cfg.Fixed, d.cfg.Samples)

	ens := &Ensemble{
		Likelihood: d.cfg.Likelihood,
		Threshold:  d.cfg.Threshold,
		Seed:       d.cfg.Seed,
		Members:    make([]Member, len(sets)),
	}
	for k, set := range sets {
		ens.Members[k] = Member{ID: k, Parameters: set}
		ens.Members[k].fail(errNotEvaluated)
	}

	d.logger.Infow("starting GLUE ensemble",
		"samples", d.cfg.Samples, "workers", d.cfg.Workers, "sampler", d.cfg.Sampler,
		"likelihood", d.cfg.Likelihood, "threshold", d.cfg.Threshold, "seed", d.cfg.Seed)
	began := time.Now()

	var (
		done       int
		progressMu sync.Mutex
	)
	total := len(sets)
	reportEvery := total / 10
	if reportEvery == 0 {
		reportEvery = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for k := range sets {
		if gctx.Err() != nil {
			break
		}
		k := k
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Each goroutine writes only its own slot.
			d.evaluate(&ens.Members[k], in, opts)

			progressMu.Lock()
			defer progressMu.Unlock()
			done++
			if d.cfg.Progress != nil {
				d.cfg.Progress(done, total)
			}
			if done%reportEvery == 0 || done == total {
				d.logger.Debugf("GLUE progress: %d/%d simulations", done, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil || ctx.Err() != nil {
		if err == nil {
			err = ctx.Err()
		}
		return nil, ens, fmt.Errorf("ensemble cancelled after %d of %d simulations: %w", done, total, err)
	}

	behavioral := ens.assignWeights()
	failed := ens.FailedCount()
	d.logger.Infow("GLUE ensemble evaluated",
		"behavioral", behavioral, "failed", failed, "best_score", ens.BestScore(),
		"elapsed", time.Since(began).String())

	if failed > 0 {
		d.logger.Debugf("ensemble member failures: %v", ens.Failures())
	}

	if behavioral == 0 {
		return nil, ens, &types.NoBehavioralSetsError{
			Samples:   total,
			Failed:    failed,
			Threshold: d.cfg.Threshold,
			BestScore: ens.BestScore(),
		}
	}

	if !d.cfg.KeepSeries {
		for i := range ens.Members {
			if m := &ens.Members[i]; !m.Behavioral {
				m.Recharge, m.Level = types.Series{}, types.Series{}
			}
		}
	}

	est := aggregate(ens, d.cfg.Ranges, d.cfg.Percentiles)
	return est, ens, nil
}

// simulationOptions anchors the simulated hydrograph on the first observed level
// inside the forcing calendar.
func (d *Driver) simulationOptions(in Input) (budget.Options, error) {
	opts := d.cfg.Simulation
	if opts.LevelUnitsPerMM == 0 {
		opts.LevelUnitsPerMM = budget.DefaultOptions().LevelUnitsPerMM
	}
	for i := 0; i < in.Forcing.Precipitation.Len(); i++ {
		if v := in.Observed.At(in.Forcing.Precipitation.Date(i)); !types.IsMissing(v) {
			opts.AnchorIndex = i
			opts.InitialLevel = v
			return opts, nil
		}
	}
	return opts, &types.InsufficientDataError{What: "observed water levels within the forcing period", Found: 0, Required: minOverlap}
}

// evaluate simulates and scores one member. Failures are recorded on the member.
func (d *Driver) evaluate(m *Member, in Input, opts budget.Options) {
	p, err := budget.ParametersFromSet(m.Parameters)
	if err != nil {
		m.fail(err)
		return
	}
	res, err := budget.Simulate(in.Forcing, p, in.Curve, opts)
	if err != nil {
		m.fail(err)
		return
	}
	score, err := Score(d.cfg.Likelihood, res.Level, in.Observed)
	if err != nil {
		m.fail(err)
		return
	}

	m.err, m.Error = nil, ""
	m.Score = score
	if d.cfg.KeepSeries || score >= d.cfg.Threshold {
		m.Recharge = res.Recharge
		m.Level = res.Level
	}
}
