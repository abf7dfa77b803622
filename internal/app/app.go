// Package app wires the recharge pipeline together: it loads the observations,
// fits the recession curve, runs the GLUE ensemble and persists the result.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/wellrecharge/internal/budget"
	"github.com/chrissnell/wellrecharge/internal/controllers/restserver"
	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/managers"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/pet"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/types"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance from a loaded configuration
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Estimate runs the pipeline once and returns the finished run. When no parameter
// set is behavioral the error is a NoBehavioralSetsError.
func (a *App) Estimate(ctx context.Context) (*storage.Run, error) {
	aligned, err := loadInputs(a.cfg)
	if err != nil {
		return nil, err
	}
	a.logger.Infow("observations aligned",
		"start", aligned.Precipitation.Start.Format(config.DateLayout), "days", aligned.Len(),
		"precipitation_days", aligned.Precipitation.CountValid(),
		"temperature_days", aligned.Temperature.CountValid(),
		"level_days", aligned.WaterLevel.CountValid())

	sel, err := selection(a.cfg.MRC)
	if err != nil {
		return nil, err
	}
	curve, err := mrc.Fit(aligned.WaterLevel, aligned.Precipitation, sel)
	if err != nil {
		return nil, fmt.Errorf("fitting the master recession curve: %w", err)
	}
	a.logger.Infow("master recession curve fitted",
		"model", curve.Kind, "fell_back", curve.FellBack, "coefficients", curve.Coefficients,
		"segments", curve.Segments, "points", curve.Points, "r_squared", curve.RSquared)

	first, last, err := forcingSpan(aligned)
	if err != nil {
		return nil, err
	}
	from, to := aligned.Precipitation.Date(first), aligned.Precipitation.Date(last)
	temperature := aligned.Temperature.Window(from, to)

	petSeries, err := pet.Daily(temperature, a.cfg.Site.Latitude)
	if err != nil {
		return nil, fmt.Errorf("estimating evapotranspiration: %w", err)
	}

	driver, err := glue.NewDriver(glueConfig(a.cfg), a.logger.Named("glue"))
	if err != nil {
		return nil, err
	}
	in := glue.Input{
		Forcing: budget.Forcing{
			Precipitation: aligned.Precipitation.Window(from, to),
			PET:           petSeries,
		},
		Observed: aligned.WaterLevel,
		Curve:    curve,
	}

	est, ens, err := driver.Run(ctx, in)
	var nb *types.NoBehavioralSetsError
	if errors.As(err, &nb) && ens != nil && ens.FailedCount() > 0 {
		a.logger.Warnf("ensemble failures: %v", ens.Failures())
	}
	if err != nil {
		return nil, err
	}

	run := storage.NewRun(a.cfg.Site.Name, a.cfg.Site.Latitude, curve, est, ens)
	a.logger.Infow("recharge estimated",
		"run", run.ID, "behavioral", est.Behavioral, "samples", est.Samples, "failed", est.Failed)
	for _, y := range est.Annual {
		a.logger.Infow("annual recharge", "year", y.Year, "days", y.Days, "mean_mm", y.Band.Mean, "percentiles_mm", y.Band.Percentiles)
	}
	return run, nil
}

// Recessions fits every recession model family to the configured well and returns
// the comparison together with the segments it was fitted on.
func (a *App) Recessions() (mrc.Comparison, []mrc.Segment, error) {
	aligned, err := loadInputs(a.cfg)
	if err != nil {
		return mrc.Comparison{}, nil, err
	}
	sel, err := selection(a.cfg.MRC)
	if err != nil {
		return mrc.Comparison{}, nil, err
	}
	segs := mrc.Segments(aligned.WaterLevel, aligned.Precipitation, sel)
	a.logger.Debugf("found %d recession segments", len(segs))

	c, err := mrc.Compare(segs)
	if err != nil {
		return c, segs, fmt.Errorf("fitting the master recession curve: %w", err)
	}
	return c, segs, nil
}

// Run estimates recharge once, saves the run to every configured store and, when
// serve is set, keeps serving the stored runs until a shutdown signal arrives.
// SIGINT and SIGTERM cancel an estimation in progress.
func (a *App) Run(ctx context.Context, serve bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := managers.NewStorageManager(ctx, &a.cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer stores.Close()

	run, err := a.Estimate(ctx)
	if err != nil {
		return err
	}

	if stores.Len() == 0 {
		a.logger.Warn("no storage configured; the run will not be persisted")
	} else if err := stores.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	if !serve {
		return nil
	}
	return a.serve(ctx, stores)
}

// Serve serves the stored runs without estimating.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := managers.NewStorageManager(ctx, &a.cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer stores.Close()
	return a.serve(ctx, stores)
}

func (a *App) serve(ctx context.Context, store storage.Store) error {
	if a.cfg.REST == nil {
		return types.InvalidParameter("rest", "server mode needs a rest section")
	}
	if s, ok := store.(*managers.StorageManager); ok && s.Len() == 0 {
		return types.InvalidParameter("storage", "server mode needs at least one store")
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl, err := restserver.NewController(ctx, &wg, store, *a.cfg.REST, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := ctrl.StartController(); err != nil {
		return err
	}
	a.logger.Info("application started successfully")

	<-ctx.Done()
	a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")
	return nil
}

// ExitCode maps pipeline errors to process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	case errors.Is(err, types.ErrNoBehavioralSets):
		return 3
	case errors.Is(err, types.ErrInvalidParameter), errors.Is(err, os.ErrNotExist):
		return 2
	default:
		return 1
	}
}
