package pet

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
)

func constantSeries(start time.Time, days int, v float64) types.Series {
	s := types.NewSeries(start, days)
	for i := range s.Values {
		s.Values[i] = v
	}
	return s
}

func TestDailyRejectsInvalidLatitude(t *testing.T) {
	temps := constantSeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 31, 10)
	for _, lat := range []float64{90.5, -91, math.NaN()} {
		if _, err := Daily(temps, lat); !errors.Is(err, types.ErrInvalidParameter) {
			t.Errorf("latitude %v: expected ErrInvalidParameter, got %v", lat, err)
		}
	}
}

func TestDailyEquatorConstantTemperature(t *testing.T) {
	// A leap year at the equator: every month has 12-hour days, so the daily rate
	// equals the unadjusted 30-day estimate divided by 30 in every month.
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	temps := constantSeries(start, 366, 20)

	daily, err := Daily(temps, 0)
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	if daily.Len() != 366 {
		t.Fatalf("expected 366 days, got %d", daily.Len())
	}

	I := 12 * math.Pow(4, 1.514)
	expected := 16 * math.Pow(200/I, exponent(I)) / 30
	for i, v := range daily.Values {
		if math.Abs(v-expected) > 1e-9 {
			t.Fatalf("day %d: expected %.6f, got %.6f", i, expected, v)
		}
	}
	if expected < 2.3 || expected > 2.6 {
		t.Errorf("daily PET %.3f mm outside the plausible range for 20 °C", expected)
	}
}

func TestDailyMissingTemperatureDays(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	temps := constantSeries(start, 365, 18)
	gapStart := 181 // July 1
	for i := gapStart; i < gapStart+25; i++ {
		temps.Values[i] = types.Missing()
	}

	daily, err := Daily(temps, 45)
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	for i, v := range daily.Values {
		inGap := i >= gapStart && i < gapStart+25
		if inGap != types.IsMissing(v) {
			t.Errorf("day %d: missing=%v, expected %v", i, types.IsMissing(v), inGap)
		}
	}
}

func TestMonthlyFreezingAndMissingMonths(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	temps := types.NewSeries(start, 365)
	for i := range temps.Values {
		d := temps.Date(i)
		switch d.Month() {
		case time.January:
			temps.Values[i] = -5
		case time.March:
			// left missing
		default:
			temps.Values[i] = 5 + 10*math.Sin(math.Pi*float64(d.YearDay())/365)
		}
	}

	months, I, err := Monthly(temps, 45)
	if err != nil {
		t.Fatalf("Monthly returned error: %v", err)
	}
	if len(months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(months))
	}
	if I <= 0 {
		t.Errorf("heat index = %v, expected positive", I)
	}
	if months[0].PETmm != 0 {
		t.Errorf("January below freezing: PET = %v, expected 0", months[0].PETmm)
	}
	if !types.IsMissing(months[2].PETmm) {
		t.Errorf("March without data: PET = %v, expected missing", months[2].PETmm)
	}
	if months[6].PETmm <= months[10].PETmm {
		t.Errorf("July PET %.2f should exceed November PET %.2f", months[6].PETmm, months[10].PETmm)
	}

	daily, err := Daily(temps, 45)
	if err != nil {
		t.Fatalf("Daily returned error: %v", err)
	}
	july := daily.At(time.Date(2021, 7, 15, 0, 0, 0, 0, time.UTC))
	if math.Abs(july*31-months[6].PETmm) > 1e-9 {
		t.Errorf("July daily rate %.4f does not apportion monthly total %.4f", july, months[6].PETmm)
	}
	if !types.IsMissing(daily.At(time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC))) {
		t.Error("expected missing daily PET in March")
	}
}

func TestUnadjustedHotBranch(t *testing.T) {
	I := 100.0
	a := exponent(I)
	below := unadjusted(26.4, I, a)
	above := unadjusted(30, I, a)
	if above <= below {
		t.Errorf("expected hot-branch estimate %.2f to exceed %.2f", above, below)
	}
	if got, want := above, -415.85+32.24*30-0.43*900; math.Abs(got-want) > 1e-9 {
		t.Errorf("hot branch = %.4f, expected %.4f", got, want)
	}
}
