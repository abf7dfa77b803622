package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestDaily(t *testing.T) {
	obs := []types.Observation{
		{Time: day(2020, 1, 3, 6), Value: 2},
		{Time: day(2020, 1, 1, 6), Value: 1},
		{Time: day(2020, 1, 1, 18), Value: 3},
		{Time: day(2020, 1, 4, 1), Value: math.NaN()},
	}

	tests := []struct {
		name     string
		agg      Aggregation
		expected []float64
	}{
		{name: "sum", agg: Sum, expected: []float64{4, math.NaN(), 2}},
		{name: "mean", agg: Mean, expected: []float64{2, math.NaN(), 2}},
		{name: "last", agg: Last, expected: []float64{3, math.NaN(), 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Daily(obs, tt.agg)
			if !s.Start.Equal(day(2020, 1, 1, 0)) {
				t.Fatalf("start = %v, expected 2020-01-01", s.Start)
			}
			if s.Len() != len(tt.expected) {
				t.Fatalf("expected %d days, got %d", len(tt.expected), s.Len())
			}
			for i, want := range tt.expected {
				got := s.Values[i]
				if math.IsNaN(want) {
					if !types.IsMissing(got) {
						t.Errorf("day %d: expected missing, got %v", i, got)
					}
					continue
				}
				if math.Abs(got-want) > 1e-12 {
					t.Errorf("day %d: expected %v, got %v", i, want, got)
				}
			}
		})
	}
}

func TestAlignCommonCalendar(t *testing.T) {
	in := Inputs{
		Precipitation: []types.Observation{{Time: day(2021, 3, 1, 0), Value: 5}, {Time: day(2021, 3, 3, 0), Value: 1}},
		Temperature:   []types.Observation{{Time: day(2021, 3, 2, 12), Value: 4}},
		WaterLevel:    []types.Observation{{Time: day(2021, 3, 2, 9), Value: 3.5}, {Time: day(2021, 3, 5, 9), Value: 3.2}},
	}

	a, err := Align(in, Options{InvertLevels: true})
	if err != nil {
		t.Fatalf("Align returned error: %v", err)
	}

	if a.Len() != 5 || a.Precipitation.Len() != 5 || a.Temperature.Len() != 5 {
		t.Fatalf("series lengths differ: precip=%d temp=%d level=%d",
			a.Precipitation.Len(), a.Temperature.Len(), a.WaterLevel.Len())
	}
	for _, s := range []types.Series{a.Precipitation, a.Temperature, a.WaterLevel} {
		if !s.Start.Equal(day(2021, 3, 1, 0)) {
			t.Errorf("start = %v, expected 2021-03-01", s.Start)
		}
	}
	if got := a.WaterLevel.Values[1]; got != -3.5 {
		t.Errorf("inverted level = %v, expected -3.5", got)
	}
	if !types.IsMissing(a.WaterLevel.Values[0]) || !types.IsMissing(a.Temperature.Values[4]) {
		t.Error("expected calendar gaps to be filled with missing values")
	}
	if got := a.WaterLevel.CountValid(); got != 2 {
		t.Errorf("valid levels = %d, expected 2", got)
	}
}

func TestAlignRejectsEmptyAndInvertedCalendars(t *testing.T) {
	_, err := Align(Inputs{}, Options{})
	if !errors.Is(err, types.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}

	in := Inputs{
		Precipitation: []types.Observation{{Time: day(2021, 3, 1, 0), Value: 1}},
		Temperature:   []types.Observation{{Time: day(2021, 3, 1, 0), Value: 1}},
		WaterLevel:    []types.Observation{{Time: day(2021, 3, 1, 0), Value: 1}},
	}
	_, err = Align(in, Options{From: day(2021, 4, 1, 0), To: day(2021, 3, 1, 0)})
	if !errors.Is(err, types.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}
