// Package mrc builds a master recession curve from the recession limbs of a well
// hydrograph. Recession limbs are either detected automatically or supplied as
// manual date ranges; both paths produce the same Segment values.
package mrc

import (
	"math"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Range is an inclusive pair of calendar dates bounding a manually chosen recession.
type Range struct {
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`
}

// Selection controls how recession segments are identified.
type Selection struct {
	// MinDays is the minimum number of daily readings a recession must span.
	MinDays int

	// Tolerance is the largest day-over-day rise still treated as non-increasing,
	// in level units. It absorbs sensor noise.
	Tolerance float64

	// RainThreshold is the daily precipitation (mm) that ends a recession. The day
	// of the pulse and everything after it are not part of the segment.
	RainThreshold float64

	// Manual ranges bypass automatic detection when non-empty.
	Manual []Range

	// Model is the recession model family to fit.
	Model ModelKind
}

// DefaultSelection returns the parameters used when the configuration is silent.
func DefaultSelection() Selection {
	return Selection{
		MinDays:       5,
		Tolerance:     0.001,
		RainThreshold: 2.0,
		Model:         Exponential,
	}
}

// Segment is one recession limb. Times are days since Start, Levels the matching
// observed water levels. Missing readings are omitted.
type Segment struct {
	Start  time.Time
	End    time.Time
	Times  []float64
	Levels []float64
	Manual bool
}

// Len returns the number of sampled points.
func (s Segment) Len() int {
	return len(s.Levels)
}

// Decline returns the drop in level from the first to the last point.
func (s Segment) Decline() float64 {
	if len(s.Levels) < 2 {
		return 0
	}
	return s.Levels[0] - s.Levels[len(s.Levels)-1]
}

// Segments returns sel.Manual as segments when given, otherwise the detected ones.
func Segments(levels, rain types.Series, sel Selection) []Segment {
	if len(sel.Manual) > 0 {
		return ManualSegments(levels, sel.Manual)
	}
	return DetectSegments(levels, rain, sel)
}

// DetectSegments scans levels for maximal non-increasing runs that are not
// interrupted by a precipitation pulse above sel.RainThreshold. Runs shorter than
// sel.MinDays readings, and runs with no net decline, are rejected. A missing level
// ends the current run. Missing precipitation is not treated as a pulse.
func DetectSegments(levels, rain types.Series, sel Selection) []Segment {
	minDays := sel.MinDays
	if minDays < 2 {
		minDays = 2
	}

	var segs []Segment
	n := levels.Len()
	i := 0
	for i < n {
		if !levels.Valid(i) {
			i++
			continue
		}
		// Rises are measured from the lowest level so far, so sub-tolerance
		// steps cannot accumulate into a climb.
		j, runMin := i, levels.Values[i]
		for j+1 < n && levels.Valid(j+1) &&
			levels.Values[j+1] <= runMin+sel.Tolerance &&
			!rainPulse(rain, levels.Date(j+1), sel.RainThreshold) {
			j++
			runMin = math.Min(runMin, levels.Values[j])
		}

		if j-i+1 >= minDays {
			seg := build(levels, i, j, false)
			if seg.Decline() > 0 {
				segs = append(segs, seg)
			}
		}
		i = j + 1
	}
	return segs
}

// ManualSegments extracts user-chosen recession ranges from levels. Ranges that hold
// fewer than two valid readings, such as ranges lying inside a data gap, are dropped.
func ManualSegments(levels types.Series, ranges []Range) []Segment {
	var segs []Segment
	for _, r := range ranges {
		start, end := types.TruncateDay(r.Start), types.TruncateDay(r.End)
		if end.Before(start) {
			start, end = end, start
		}
		i, _ := levels.Index(start)
		j, _ := levels.Index(end)
		if i < 0 {
			i = 0
		}
		if j >= levels.Len() {
			j = levels.Len() - 1
		}
		if i > j {
			continue
		}
		seg := build(levels, i, j, true)
		if seg.Len() >= 2 {
			segs = append(segs, seg)
		}
	}
	return segs
}

func build(levels types.Series, i, j int, manual bool) Segment {
	seg := Segment{Manual: manual}
	first := -1
	for k := i; k <= j; k++ {
		if !levels.Valid(k) {
			continue
		}
		if first < 0 {
			first = k
			seg.Start = levels.Date(k)
		}
		seg.End = levels.Date(k)
		seg.Times = append(seg.Times, float64(k-first))
		seg.Levels = append(seg.Levels, levels.Values[k])
	}
	return seg
}

func rainPulse(rain types.Series, day time.Time, threshold float64) bool {
	p := rain.At(day)
	return !types.IsMissing(p) && p > threshold
}
