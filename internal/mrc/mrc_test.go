package mrc

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

var origin = time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC)

// linearSegment returns n daily readings falling linearly from h0 to h1.
func linearSegment(start time.Time, h0, h1 float64, n int) Segment {
	s := Segment{Start: start, End: start.AddDate(0, 0, n-1)}
	for k := 0; k < n; k++ {
		s.Times = append(s.Times, float64(k))
		s.Levels = append(s.Levels, h0+(h1-h0)*float64(k)/float64(n-1))
	}
	return s
}

// hydrograph builds a level series from a list of per-day values, with NaN as missing.
func hydrograph(values ...float64) types.Series {
	s := types.NewSeries(origin, len(values))
	copy(s.Values, values)
	return s
}

func TestJointFitOfTwoLinearSegments(t *testing.T) {
	// 10 readings from 10 to 8 and 15 readings from 12 to 9.
	a := linearSegment(origin, 10, 8, 10)
	b := linearSegment(origin.AddDate(0, 2, 0), 12, 9, 15)
	slopeA := -2.0 / 9.0
	slopeB := -3.0 / 14.0

	m, err := FitSegments([]Segment{a, b}, Exponential)
	if err != nil {
		t.Fatalf("FitSegments returned error: %v", err)
	}

	if m.Segments != 2 || m.Points != 23 {
		t.Errorf("segments=%d points=%d, expected 2 and 23", m.Segments, m.Points)
	}

	// Both rates are constant within a segment, and the higher limb declines more
	// slowly, so no exponential decay fits and the engine falls back to one joint
	// constant rate: the point-weighted mean of both limbs.
	if m.Kind != Linear || !m.FellBack {
		t.Fatalf("kind=%s fellBack=%v, expected linear fallback", m.Kind, m.FellBack)
	}
	want := -5.0 / 23.0
	got := m.Rate(9.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("joint rate = %.6f, expected %.6f", got, want)
	}
	if !(got > slopeA && got < slopeB) {
		t.Errorf("joint rate %.6f should lie strictly between %.6f and %.6f", got, slopeA, slopeB)
	}
}

func TestExponentialFitRecoversDecay(t *testing.T) {
	// h(t) = 2 + (h0 - 2) * exp(-0.05 t)
	k := 0.05
	var segs []Segment
	for i, h0 := range []float64{6, 9, 4} {
		s := Segment{Start: origin.AddDate(0, i, 0)}
		for d := 0; d < 20; d++ {
			s.Times = append(s.Times, float64(d))
			s.Levels = append(s.Levels, 2+(h0-2)*math.Exp(-k*float64(d)))
		}
		segs = append(segs, s)
	}

	m, err := FitSegments(segs, Exponential)
	if err != nil {
		t.Fatalf("FitSegments returned error: %v", err)
	}
	if m.Kind != Exponential || m.FellBack {
		t.Fatalf("kind=%s fellBack=%v, expected exponential", m.Kind, m.FellBack)
	}
	if math.Abs(m.DecayPerDay-k) > 1e-9 {
		t.Errorf("decay = %.6f, expected %.6f", m.DecayPerDay, k)
	}
	if math.Abs(m.Asymptote-2) > 1e-6 {
		t.Errorf("asymptote = %.6f, expected 2", m.Asymptote)
	}
	if m.RSquared < 0.999999 {
		t.Errorf("R² = %.6f, expected ~1", m.RSquared)
	}

	pred := m.Predict(6, 20)
	for d, h := range pred {
		if math.Abs(h-segs[0].Levels[d]) > 1e-6 {
			t.Fatalf("day %d: predicted %.6f, observed %.6f", d, h, segs[0].Levels[d])
		}
	}
}

func TestFitNeverWorseThanConstantBaseline(t *testing.T) {
	segs := []Segment{
		{Times: []float64{0, 1, 2, 3, 4, 5}, Levels: []float64{5, 4.7, 4.5, 4.42, 4.1, 4.05}},
		{Times: []float64{0, 1, 2, 3}, Levels: []float64{7, 6.4, 6.1, 5.5}},
		{Times: []float64{0, 1, 2, 4, 5}, Levels: []float64{3.3, 3.28, 3.1, 3.05, 3.0}},
	}

	for _, kind := range []ModelKind{Linear, Exponential, Quadratic} {
		t.Run(string(kind), func(t *testing.T) {
			m, err := FitSegments(segs, kind)
			if err != nil {
				t.Fatalf("FitSegments returned error: %v", err)
			}
			for _, c := range []float64{-1, -0.3, -0.2, -0.1, 0, 0.5} {
				if base := ConstantSSE(segs, c); m.SSE > base+1e-12 {
					t.Errorf("SSE %.6f exceeds constant baseline %.6f (c=%v)", m.SSE, base, c)
				}
			}
		})
	}
}

func TestFitSegmentsErrors(t *testing.T) {
	one := []Segment{linearSegment(origin, 3, 2, 6)}
	if _, err := FitSegments(one, Exponential); !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for one segment, got %v", err)
	}

	var ide *types.InsufficientDataError
	if _, err := FitSegments(nil, Exponential); !errors.As(err, &ide) || ide.Found != 0 {
		t.Errorf("expected InsufficientDataError with Found=0, got %v", err)
	}

	two := []Segment{linearSegment(origin, 3, 2, 6), linearSegment(origin, 5, 2, 6)}
	if _, err := FitSegments(two, "cubic"); !errors.Is(err, types.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter for an unknown model, got %v", err)
	}
}

func TestDetectSegments(t *testing.T) {
	nan := math.NaN()
	levels := hydrograph(
		10, 9.8, 9.6, 9.4, 9.2, 9.0, // recession of 6 days
		9.5, 9.4, // too short, ended by a rise
		9.9, 9.8, 9.7, 9.6, 9.5, 9.4, 9.3, // interrupted by rain on day 13
		nan, nan, nan, // gap
		8.0, 8.0, 8.0, 8.0, 8.0, // flat, no decline
	)
	rain := types.NewSeries(origin, levels.Len())
	for i := range rain.Values {
		rain.Values[i] = 0
	}
	rain.Values[13] = 15

	sel := DefaultSelection()
	sel.MinDays = 3
	segs := DetectSegments(levels, rain, sel)

	if len(segs) != 2 {
		for _, s := range segs {
			t.Logf("segment %s to %s (%d points)", s.Start.Format("01-02"), s.End.Format("01-02"), s.Len())
		}
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if !segs[0].Start.Equal(origin) || segs[0].Len() != 6 {
		t.Errorf("first segment starts %v with %d points", segs[0].Start, segs[0].Len())
	}
	if got := segs[1].Start; !got.Equal(origin.AddDate(0, 0, 8)) {
		t.Errorf("second segment starts %v, expected day 8", got)
	}
	if segs[1].Len() != 5 {
		t.Errorf("second segment has %d points, expected 5 (ends before the rain pulse)", segs[1].Len())
	}
	for _, s := range segs {
		if s.Manual {
			t.Error("automatic segment flagged as manual")
		}
	}
}

func TestDetectSegmentsTolerance(t *testing.T) {
	levels := hydrograph(5, 4.9, 4.9005, 4.8, 4.7)
	rain := types.Series{}

	sel := DefaultSelection()
	sel.MinDays = 5
	sel.Tolerance = 0.001
	if got := len(DetectSegments(levels, rain, sel)); got != 1 {
		t.Errorf("expected noise within tolerance to be ignored, got %d segments", got)
	}

	sel.Tolerance = 0
	if got := len(DetectSegments(levels, rain, sel)); got != 0 {
		t.Errorf("expected the rise to split the run, got %d segments", got)
	}
}

func TestDetectSegmentsRejectsSlowDrift(t *testing.T) {
	// 20 daily rises just under the tolerance, then one drop below the start.
	values := []float64{5}
	for k := 0; k < 20; k++ {
		values = append(values, values[len(values)-1]+0.0009)
	}
	values = append(values, 4.999)
	levels := hydrograph(values...)

	sel := DefaultSelection()
	sel.MinDays = 5
	sel.Tolerance = 0.001
	segs := DetectSegments(levels, types.Series{}, sel)
	if len(segs) != 0 {
		t.Errorf("expected no recession in a slow climb, got %d segments", len(segs))
	}
	for _, seg := range segs {
		lo := seg.Levels[0]
		for _, h := range seg.Levels {
			if h > lo+sel.Tolerance {
				t.Fatalf("segment %s..%s climbs to %.4f from a low of %.4f",
					seg.Start.Format("01-02"), seg.End.Format("01-02"), h, lo)
			}
			lo = math.Min(lo, h)
		}
	}
}

func TestManualSegmentsMatchDetected(t *testing.T) {
	nan := math.NaN()
	levels := hydrograph(6, 5.8, 5.6, 5.4, 5.2, 7, 6.7, 6.4, 6.1, 5.8, nan, nan, nan)
	rain := types.Series{}

	sel := DefaultSelection()
	sel.MinDays = 4
	auto := DetectSegments(levels, rain, sel)

	manual := ManualSegments(levels, []Range{
		{Start: origin, End: origin.AddDate(0, 0, 4)},
		{Start: origin.AddDate(0, 0, 9), End: origin.AddDate(0, 0, 5)}, // reversed bounds
		{Start: origin.AddDate(0, 0, 10), End: origin.AddDate(0, 0, 12)}, // inside the gap
	})

	if len(auto) != 2 || len(manual) != 2 {
		t.Fatalf("expected 2 automatic and 2 manual segments, got %d and %d", len(auto), len(manual))
	}
	for i := range auto {
		a, m := auto[i], manual[i]
		if !a.Start.Equal(m.Start) || !a.End.Equal(m.End) || a.Len() != m.Len() {
			t.Errorf("segment %d differs: auto %v-%v (%d) manual %v-%v (%d)",
				i, a.Start, a.End, a.Len(), m.Start, m.End, m.Len())
		}
		for k := range a.Levels {
			if a.Levels[k] != m.Levels[k] || a.Times[k] != m.Times[k] {
				t.Errorf("segment %d point %d differs", i, k)
			}
		}
		if !m.Manual {
			t.Errorf("segment %d not flagged as manual", i)
		}
	}

	aFit, err := FitSegments(auto, Linear)
	if err != nil {
		t.Fatalf("fit auto: %v", err)
	}
	mFit, err := Fit(levels, rain, Selection{Manual: []Range{
		{Start: origin, End: origin.AddDate(0, 0, 4)},
		{Start: origin.AddDate(0, 0, 5), End: origin.AddDate(0, 0, 9)},
	}, Model: Linear})
	if err != nil {
		t.Fatalf("fit manual: %v", err)
	}
	if aFit.Coefficients[0] != mFit.Coefficients[0] {
		t.Errorf("manual and automatic fits differ: %v vs %v", aFit.Coefficients, mFit.Coefficients)
	}
}
