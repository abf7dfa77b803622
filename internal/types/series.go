// Package types holds the data structures shared by the recharge estimation
// packages: daily calendar series, observations, parameter sets and the error kinds.
package types

import (
	"math"
	"time"
)

// Day is the length of one calendar step.
const Day = 24 * time.Hour

// Observation is a single raw (time, value) record as delivered by the ingestion layer.
// Observations may be irregular, contain several records per day, or skip days.
type Observation struct {
	Time  time.Time
	Value float64
}

// Missing returns the sentinel used to mark a missing daily value.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing-value sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Series is a daily calendar series. Value i belongs to Start + i days, so dates are
// strictly increasing and never duplicated. Gaps are stored as Missing() values.
type Series struct {
	Start  time.Time
	Values []float64
}

// NewSeries returns a series of n missing values starting at the calendar day of start.
func NewSeries(start time.Time, n int) Series {
	s := Series{Start: TruncateDay(start), Values: make([]float64, n)}
	for i := range s.Values {
		s.Values[i] = Missing()
	}
	return s
}

// TruncateDay normalises t to midnight UTC of its calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of days in the series.
func (s Series) Len() int {
	return len(s.Values)
}

// Date returns the calendar date of index i.
func (s Series) Date(i int) time.Time {
	return s.Start.AddDate(0, 0, i)
}

// End returns the date of the last value, or Start for an empty series.
func (s Series) End() time.Time {
	if len(s.Values) == 0 {
		return s.Start
	}
	return s.Date(len(s.Values) - 1)
}

// Index returns the position of date t in the series and whether it falls inside it.
func (s Series) Index(t time.Time) (int, bool) {
	i := int(math.Round(TruncateDay(t).Sub(s.Start).Hours() / 24))
	return i, i >= 0 && i < len(s.Values)
}

// At returns the value at date t, or Missing() outside the series.
func (s Series) At(t time.Time) float64 {
	i, ok := s.Index(t)
	if !ok {
		return Missing()
	}
	return s.Values[i]
}

// Valid reports whether index i holds a non-missing value.
func (s Series) Valid(i int) bool {
	return i >= 0 && i < len(s.Values) && !IsMissing(s.Values[i])
}

// CountValid returns the number of non-missing values.
func (s Series) CountValid() int {
	n := 0
	for _, v := range s.Values {
		if !IsMissing(v) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the series.
func (s Series) Clone() Series {
	c := Series{Start: s.Start, Values: make([]float64, len(s.Values))}
	copy(c.Values, s.Values)
	return c
}

// Window returns a copy of the series restricted to [from, to], padding with missing
// values where the window extends beyond the data.
func (s Series) Window(from, to time.Time) Series {
	from, to = TruncateDay(from), TruncateDay(to)
	if to.Before(from) {
		return Series{Start: from}
	}
	n := int(math.Round(to.Sub(from).Hours()/24)) + 1
	w := NewSeries(from, n)
	for i := 0; i < n; i++ {
		w.Values[i] = s.At(w.Date(i))
	}
	return w
}

// Points returns the non-missing values as observations.
func (s Series) Points() []Observation {
	pts := make([]Observation, 0, len(s.Values))
	for i, v := range s.Values {
		if !IsMissing(v) {
			pts = append(pts, Observation{Time: s.Date(i), Value: v})
		}
	}
	return pts
}
