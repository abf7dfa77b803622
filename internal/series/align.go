// Package series aligns raw precipitation, temperature and water-level records onto a
// common daily calendar. Calendar days without data are kept as missing values.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Aggregation selects how several records on the same calendar day are combined.
type Aggregation int

const (
	// Sum adds the records of a day (precipitation depths).
	Sum Aggregation = iota
	// Mean averages the records of a day (temperature, water level).
	Mean
	// Last keeps the latest record of a day.
	Last
)

// Inputs are the raw records handed over by the ingestion layer.
type Inputs struct {
	Precipitation []types.Observation
	Temperature   []types.Observation
	WaterLevel    []types.Observation
}

// Options control the calendar span and level orientation.
type Options struct {
	// From and To bound the calendar. Zero values use the union of the input spans.
	From time.Time
	To   time.Time

	// InvertLevels negates water levels given as depth below ground surface so that
	// a recession always appears as a decline.
	InvertLevels bool
}

// Aligned holds the three series on an identical calendar.
type Aligned struct {
	Precipitation types.Series
	Temperature   types.Series
	WaterLevel    types.Series
}

// Len returns the number of calendar days.
func (a Aligned) Len() int {
	return a.WaterLevel.Len()
}

// Align places every input on the same daily calendar. Precipitation is summed per
// day, temperature and water level are averaged.
func Align(in Inputs, opts Options) (Aligned, error) {
	if len(in.Precipitation) == 0 {
		return Aligned{}, &types.InsufficientDataError{What: "precipitation records", Found: 0, Required: 1}
	}
	if len(in.Temperature) == 0 {
		return Aligned{}, &types.InsufficientDataError{What: "temperature records", Found: 0, Required: 1}
	}
	if len(in.WaterLevel) == 0 {
		return Aligned{}, &types.InsufficientDataError{What: "water level records", Found: 0, Required: 1}
	}

	from, to := opts.From, opts.To
	if from.IsZero() || to.IsZero() {
		lo, hi := span(in.Precipitation, in.Temperature, in.WaterLevel)
		if from.IsZero() {
			from = lo
		}
		if to.IsZero() {
			to = hi
		}
	}
	from, to = types.TruncateDay(from), types.TruncateDay(to)
	if to.Before(from) {
		return Aligned{}, types.InvalidParameter("calendar", "end %s precedes start %s",
			to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	levels := in.WaterLevel
	if opts.InvertLevels {
		levels = make([]types.Observation, len(in.WaterLevel))
		for i, o := range in.WaterLevel {
			levels[i] = types.Observation{Time: o.Time, Value: -o.Value}
		}
	}

	return Aligned{
		Precipitation: Daily(in.Precipitation, Sum).Window(from, to),
		Temperature:   Daily(in.Temperature, Mean).Window(from, to),
		WaterLevel:    Daily(levels, Mean).Window(from, to),
	}, nil
}

// Daily collapses raw records onto a contiguous daily calendar running from the first
// to the last record. Non-finite values are treated as absent.
func Daily(obs []types.Observation, agg Aggregation) types.Series {
	valid := make([]types.Observation, 0, len(obs))
	for _, o := range obs {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			continue
		}
		valid = append(valid, o)
	}
	if len(valid) == 0 {
		return types.Series{}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Time.Before(valid[j].Time) })

	first := types.TruncateDay(valid[0].Time)
	last := types.TruncateDay(valid[len(valid)-1].Time)
	n := int(math.Round(last.Sub(first).Hours()/24)) + 1
	s := types.NewSeries(first, n)

	counts := make([]int, n)
	for _, o := range valid {
		i, _ := s.Index(o.Time)
		switch {
		case counts[i] == 0, agg == Last:
			s.Values[i] = o.Value
		default:
			s.Values[i] += o.Value
		}
		counts[i]++
	}
	if agg == Mean {
		for i, c := range counts {
			if c > 1 {
				s.Values[i] /= float64(c)
			}
		}
	}
	return s
}

func span(sets ...[]types.Observation) (lo, hi time.Time) {
	for _, set := range sets {
		for _, o := range set {
			if lo.IsZero() || o.Time.Before(lo) {
				lo = o.Time
			}
			if hi.IsZero() || o.Time.After(hi) {
				hi = o.Time
			}
		}
	}
	return lo, hi
}
