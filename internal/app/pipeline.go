package app

import (
	"fmt"

	"github.com/chrissnell/wellrecharge/internal/budget"
	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/ingest"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/series"
	"github.com/chrissnell/wellrecharge/internal/types"
	"github.com/chrissnell/wellrecharge/pkg/config"
)

// loadInputs reads the three observation files and aligns them on one calendar.
func loadInputs(c *config.ConfigData) (series.Aligned, error) {
	var in series.Inputs
	var err error

	for _, f := range []struct {
		path string
		dst  *[]types.Observation
	}{
		{c.Inputs.Precipitation, &in.Precipitation},
		{c.Inputs.Temperature, &in.Temperature},
		{c.Inputs.WaterLevel, &in.WaterLevel},
	} {
		if *f.dst, err = ingest.ReadFile(f.path); err != nil {
			return series.Aligned{}, fmt.Errorf("reading observations: %w", err)
		}
	}

	opts := series.Options{InvertLevels: c.Site.DepthBelowSurface}
	// dates were checked by config validation
	opts.From, _ = config.ParseDate(c.Inputs.From)
	opts.To, _ = config.ParseDate(c.Inputs.To)

	return series.Align(in, opts)
}

// forcingSpan returns the first and last day on which both precipitation and
// temperature are valid. Outside it every simulation would fail on a forcing gap.
func forcingSpan(a series.Aligned) (first, last int, err error) {
	first, last = -1, -1
	for i := 0; i < a.Len(); i++ {
		if a.Precipitation.Valid(i) && a.Temperature.Valid(i) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, &types.InsufficientDataError{What: "days with both precipitation and temperature", Found: 0, Required: 1}
	}
	return first, last, nil
}

func selection(c config.MRCData) (mrc.Selection, error) {
	sel := mrc.Selection{
		MinDays:       c.MinDays,
		Tolerance:     *c.Tolerance,
		RainThreshold: *c.RainThresholdMM,
		Model:         mrc.ModelKind(c.Model),
	}
	for _, r := range c.Manual {
		start, err := config.ParseDate(r.Start)
		if err != nil {
			return sel, types.InvalidParameter("mrc.manual", "%v", err)
		}
		end, err := config.ParseDate(r.End)
		if err != nil {
			return sel, types.InvalidParameter("mrc.manual", "%v", err)
		}
		sel.Manual = append(sel.Manual, mrc.Range{Start: start, End: end})
	}
	return sel, nil
}

func glueConfig(c *config.ConfigData) glue.Config {
	g := glue.Config{
		Samples:     c.GLUE.Samples,
		Seed:        c.GLUE.Seed,
		Threshold:   c.GLUE.Threshold,
		Likelihood:  glue.Likelihood(c.GLUE.Likelihood),
		Sampler:     glue.Sampler(c.GLUE.Sampler),
		Workers:     c.GLUE.Workers,
		Percentiles: c.GLUE.Percentiles,
		Fixed:       types.ParameterSet(c.GLUE.Fixed).Clone(),
		KeepSeries:  c.GLUE.KeepSeries,
		Simulation: budget.Options{
			InitialStorageFraction: *c.Simulation.InitialStorageFraction,
			MaxGapDays:             *c.Simulation.MaxGapDays,
			LevelUnitsPerMM:        c.Simulation.LevelUnitsPerMM,
		},
	}
	for _, p := range c.GLUE.Parameters {
		g.Ranges = append(g.Ranges, p.Range())
	}
	return g
}
