package budget

import (
	"math"
	"time"

	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/types"
)

// Forcing is the daily weather input of a simulation. Both series must share a calendar.
type Forcing struct {
	Precipitation types.Series // mm/day
	PET           types.Series // mm/day
}

// Options hold the run settings that are not sampled.
type Options struct {
	// InitialStorageFraction is the starting root-zone storage as a fraction of max_storage.
	InitialStorageFraction float64

	// AnchorIndex is the day on which the simulated level equals InitialLevel. No level
	// is produced before it.
	AnchorIndex  int
	InitialLevel float64

	// MaxGapDays is the longest run of missing forcing days that is bridged.
	MaxGapDays int

	// LevelUnitsPerMM converts a recharge depth in mm to water-level units before
	// dividing by specific yield (0.001 for levels in metres).
	LevelUnitsPerMM float64
}

// DefaultOptions returns options for levels in metres anchored on the first day.
func DefaultOptions() Options {
	return Options{
		InitialStorageFraction: 0.5,
		MaxGapDays:             3,
		LevelUnitsPerMM:        0.001,
	}
}

// Result holds the daily output series of one simulation. Days with missing forcing
// are missing in every flux and storage series.
type Result struct {
	Start      time.Time
	Parameters Parameters

	Runoff   types.Series // storage-excess runoff, mm
	ActualET types.Series // mm
	Storage  types.Series // end-of-day root-zone storage, mm
	Drainage types.Series // water leaving the root zone, mm
	Recharge types.Series // drainage arriving at the water table after the lag, mm
	Level    types.Series // simulated water level
}

// Len returns the number of simulated days.
func (r *Result) Len() int {
	return r.Recharge.Len()
}

// Simulate runs the bucket model over the forcing calendar.
//
// Each day: runoff = max(0, P + S - Smax); infiltration = P - runoff;
// AET = min(PET, S + infiltration); S = clamp(S + infiltration - AET, 0, Smax);
// drainage = k * max(0, S - fc*Smax), removed from S. Drainage passes through a FIFO
// of lag_days days and then raises the level by recharge * LevelUnitsPerMM / Sy on
// top of the recession step of the master recession curve.
func Simulate(f Forcing, p Parameters, curve mrc.Model, opts Options) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkForcing(f, opts); err != nil {
		return nil, err
	}

	n := f.Precipitation.Len()
	start := f.Precipitation.Start
	r := &Result{
		Start:      start,
		Parameters: p,
		Runoff:     types.NewSeries(start, n),
		ActualET:   types.NewSeries(start, n),
		Storage:    types.NewSeries(start, n),
		Drainage:   types.NewSeries(start, n),
		Recharge:   types.NewSeries(start, n),
		Level:      types.NewSeries(start, n),
	}

	smax := p.MaxStorage
	fc := p.FieldCapacity * smax
	s := clamp(opts.InitialStorageFraction*smax, 0, smax)
	h := opts.InitialLevel
	levelPerMM := opts.LevelUnitsPerMM / p.SpecificYield

	lag := newFIFO(p.LagDays)
	gap := 0

	for t := 0; t < n; t++ {
		precip, pet := f.Precipitation.Values[t], f.PET.Values[t]

		drained := types.Missing()
		if types.IsMissing(precip) || types.IsMissing(pet) {
			gap++
			if gap > opts.MaxGapDays {
				return nil, &types.ForcingGapError{Start: r.Start.AddDate(0, 0, t-gap+1), Days: gap, MaxDays: opts.MaxGapDays}
			}
		} else {
			gap = 0
			precip, pet = math.Max(precip, 0), math.Max(pet, 0)

			runoff := math.Max(0, precip+s-smax)
			infiltration := precip - runoff
			aet := math.Min(pet, s+infiltration)
			s = clamp(s+infiltration-aet, 0, smax)

			drained = p.RechargeCoefficient * math.Max(0, s-fc)
			s -= drained

			r.Runoff.Values[t] = runoff
			r.ActualET.Values[t] = aet
			r.Storage.Values[t] = s
			r.Drainage.Values[t] = drained
		}

		arriving := lag.push(drained)
		r.Recharge.Values[t] = arriving

		switch {
		case t < opts.AnchorIndex:
		case t == opts.AnchorIndex:
			r.Level.Values[t] = h
		default:
			h = curve.Step(h)
			if types.IsMissing(arriving) {
				continue
			}
			h += arriving * levelPerMM
			r.Level.Values[t] = h
		}
	}
	return r, nil
}

func checkForcing(f Forcing, opts Options) error {
	switch {
	case f.Precipitation.Len() == 0:
		return &types.InsufficientDataError{What: "forcing days", Found: 0, Required: 1}
	case f.Precipitation.Len() != f.PET.Len() || !f.Precipitation.Start.Equal(f.PET.Start):
		return types.InvalidParameter("forcing", "precipitation and PET calendars differ")
	case opts.MaxGapDays < 0:
		return types.InvalidParameter("max_gap_days", "must not be negative, got %d", opts.MaxGapDays)
	case opts.AnchorIndex < 0 || opts.AnchorIndex >= f.Precipitation.Len():
		return types.InvalidParameter("anchor", "index %d outside the forcing calendar", opts.AnchorIndex)
	case math.IsNaN(opts.InitialLevel) || math.IsInf(opts.InitialLevel, 0):
		return types.InvalidParameter("initial_level", "must be finite")
	case !(opts.InitialStorageFraction >= 0 && opts.InitialStorageFraction <= 1):
		return types.InvalidParameter("initial_storage_fraction", "must lie within [0, 1], got %g", opts.InitialStorageFraction)
	case !(opts.LevelUnitsPerMM > 0):
		return types.InvalidParameter("level_units_per_mm", "must be positive, got %g", opts.LevelUnitsPerMM)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// fifo delays values by a fixed number of days. Until it fills it releases zero.
type fifo struct {
	buf  []float64
	head int
	full bool
}

func newFIFO(depth int) *fifo {
	return &fifo{buf: make([]float64, depth)}
}

func (q *fifo) push(v float64) float64 {
	if len(q.buf) == 0 {
		return v
	}
	out := 0.0
	if q.full {
		out = q.buf[q.head]
	}
	q.buf[q.head] = v
	q.head++
	if q.head == len(q.buf) {
		q.head = 0
		q.full = true
	}
	return out
}
