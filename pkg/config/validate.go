package config

import (
	"math"
	"time"

	"go.uber.org/multierr"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// DateLayout is the layout of every date in the configuration file.
const DateLayout = "2006-01-02"

// Section defaults.
const (
	DefaultMRCModel               = "exponential"
	DefaultMinDays                = 5
	DefaultTolerance              = 0.001
	DefaultRainThresholdMM        = 2.0
	DefaultMaxGapDays             = 3
	DefaultInitialStorageFraction = 0.5
	DefaultLevelUnitsPerMM        = 0.001
	DefaultSamples                = 1000
	DefaultLikelihood             = "nse"
	DefaultSampler                = "uniform"
	DefaultRESTPort               = 8080
)

// ApplyDefaults fills every optional setting left empty.
func (c *ConfigData) ApplyDefaults() {
	if c.MRC.Model == "" {
		c.MRC.Model = DefaultMRCModel
	}
	if c.MRC.MinDays == 0 {
		c.MRC.MinDays = DefaultMinDays
	}
	if c.MRC.Tolerance == nil {
		c.MRC.Tolerance = float64Ptr(DefaultTolerance)
	}
	if c.MRC.RainThresholdMM == nil {
		c.MRC.RainThresholdMM = float64Ptr(DefaultRainThresholdMM)
	}

	if c.Simulation.MaxGapDays == nil {
		gap := DefaultMaxGapDays
		c.Simulation.MaxGapDays = &gap
	}
	if c.Simulation.InitialStorageFraction == nil {
		c.Simulation.InitialStorageFraction = float64Ptr(DefaultInitialStorageFraction)
	}
	if c.Simulation.LevelUnitsPerMM == 0 {
		c.Simulation.LevelUnitsPerMM = DefaultLevelUnitsPerMM
	}

	if c.GLUE.Samples == 0 {
		c.GLUE.Samples = DefaultSamples
	}
	if c.GLUE.Likelihood == "" {
		c.GLUE.Likelihood = DefaultLikelihood
	}
	if c.GLUE.Sampler == "" {
		c.GLUE.Sampler = DefaultSampler
	}
	if len(c.GLUE.Percentiles) == 0 {
		c.GLUE.Percentiles = []float64{0.05, 0.5, 0.95}
	}
	if c.Site.SpecificYield > 0 && !c.GLUE.mentions("specific_yield") {
		if c.GLUE.Fixed == nil {
			c.GLUE.Fixed = make(map[string]float64)
		}
		c.GLUE.Fixed["specific_yield"] = c.Site.SpecificYield
	}

	if c.REST != nil && c.REST.Port == 0 {
		c.REST.Port = DefaultRESTPort
	}
}

// mentions reports whether the parameter is sampled or fixed.
func (g *GLUEData) mentions(name string) bool {
	if _, ok := g.Fixed[name]; ok {
		return true
	}
	for _, p := range g.Parameters {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Validate checks every section and returns all problems found combined with
// multierr. Each problem is an InvalidParameterError.
func (c *ConfigData) Validate() error {
	var err error
	add := func(name, format string, args ...interface{}) {
		err = multierr.Append(err, types.InvalidParameter(name, format, args...))
	}

	if !(c.Site.Latitude >= -90 && c.Site.Latitude <= 90) {
		add("site.latitude", "must lie within [-90, 90], got %g", c.Site.Latitude)
	}

	for name, path := range map[string]string{
		"inputs.precipitation": c.Inputs.Precipitation,
		"inputs.temperature":   c.Inputs.Temperature,
		"inputs.water_level":   c.Inputs.WaterLevel,
	} {
		if path == "" {
			add(name, "file path is required")
		}
	}
	from, fromErr := ParseDate(c.Inputs.From)
	if fromErr != nil {
		add("inputs.from", "%v", fromErr)
	}
	to, toErr := ParseDate(c.Inputs.To)
	if toErr != nil {
		add("inputs.to", "%v", toErr)
	}
	if fromErr == nil && toErr == nil && !from.IsZero() && !to.IsZero() && to.Before(from) {
		add("inputs", "window ends (%s) before it starts (%s)", c.Inputs.To, c.Inputs.From)
	}

	switch c.MRC.Model {
	case "exponential", "linear", "quadratic":
	default:
		add("mrc.model", "unknown model %q", c.MRC.Model)
	}
	if c.MRC.MinDays < 2 {
		add("mrc.min_days", "must be at least 2, got %d", c.MRC.MinDays)
	}
	if c.MRC.Tolerance != nil && !(*c.MRC.Tolerance >= 0) {
		add("mrc.tolerance", "must not be negative")
	}
	if c.MRC.RainThresholdMM != nil && !(*c.MRC.RainThresholdMM >= 0) {
		add("mrc.rain_threshold_mm", "must not be negative")
	}
	for i, r := range c.MRC.Manual {
		if _, e := ParseDate(r.Start); e != nil || r.Start == "" {
			add("mrc.manual", "segment %d: bad start date %q", i, r.Start)
		}
		if _, e := ParseDate(r.End); e != nil || r.End == "" {
			add("mrc.manual", "segment %d: bad end date %q", i, r.End)
		}
	}

	if c.Simulation.MaxGapDays != nil && *c.Simulation.MaxGapDays < 0 {
		add("simulation.max_gap_days", "must not be negative, got %d", *c.Simulation.MaxGapDays)
	}
	if f := c.Simulation.InitialStorageFraction; f != nil && !(*f >= 0 && *f <= 1) {
		add("simulation.initial_storage_fraction", "must lie within [0, 1], got %g", *f)
	}
	if !(c.Simulation.LevelUnitsPerMM > 0) {
		add("simulation.level_units_per_mm", "must be positive, got %g", c.Simulation.LevelUnitsPerMM)
	}

	if c.GLUE.Samples <= 0 {
		add("glue.samples", "must be positive, got %d", c.GLUE.Samples)
	}
	if math.IsNaN(c.GLUE.Threshold) || math.IsInf(c.GLUE.Threshold, 0) {
		add("glue.threshold", "must be finite")
	}
	switch c.GLUE.Likelihood {
	case "nse", "kge":
	default:
		add("glue.likelihood", "unknown likelihood %q", c.GLUE.Likelihood)
	}
	switch c.GLUE.Sampler {
	case "uniform", "lhs":
	default:
		add("glue.sampler", "unknown sampler %q", c.GLUE.Sampler)
	}
	if c.GLUE.Workers < 0 {
		add("glue.workers", "must not be negative, got %d", c.GLUE.Workers)
	}
	for _, p := range c.GLUE.Percentiles {
		if !(p > 0 && p < 1) {
			add("glue.percentiles", "%g outside (0, 1)", p)
		}
	}
	if len(c.GLUE.Parameters) == 0 {
		add("glue.parameters", "at least one parameter range is required")
	}
	for _, p := range c.GLUE.Parameters {
		if e := p.Range().Validate(); e != nil {
			err = multierr.Append(err, e)
		}
	}

	if s := c.Storage.SQLite; s != nil && s.Path == "" {
		add("storage.sqlite.path", "is required")
	}
	if s := c.Storage.TimescaleDB; s != nil && s.ConnectionString == "" {
		add("storage.timescaledb.connection_string", "is required")
	}
	if s := c.Storage.Msgpack; s != nil && s.Directory == "" {
		add("storage.msgpack.directory", "is required")
	}

	if r := c.REST; r != nil {
		if r.Port < 1 || r.Port > 65535 {
			add("rest.port", "must lie within [1, 65535], got %d", r.Port)
		}
		if (r.Cert == "") != (r.Key == "") {
			add("rest", "cert and key must be given together")
		}
	}
	return err
}

// Range converts the configured range into a sampling range.
func (p ParameterRangeData) Range() types.ParameterRange {
	return types.ParameterRange{Name: p.Name, Min: p.Min, Max: p.Max, Log: p.Log}
}

// ParseDate parses a configuration date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func float64Ptr(v float64) *float64 {
	return &v
}
