// Package pet estimates potential evapotranspiration from air temperature with the
// Thornthwaite (1948) method, adjusted for day length and month length.
package pet

import (
	"math"
	"time"

	"github.com/chrissnell/wellrecharge/internal/types"
	"github.com/chrissnell/wellrecharge/pkg/solar"
)

// Above this monthly mean temperature the Willmott et al. (1985) extension replaces
// the power law.
const hotThresholdC = 26.5

// MonthlyEstimate is the potential evapotranspiration of one calendar month.
type MonthlyEstimate struct {
	Year      int
	Month     time.Month
	Days      int
	MeanTempC float64 // mean of valid daily temperatures, missing when the month has none
	DayLength float64 // mean day length in hours
	PETmm     float64 // adjusted monthly total, missing when MeanTempC is missing
}

// HeatIndex returns the annual heat index from twelve climatological monthly mean
// temperatures. Months at or below 0 °C, and missing months, contribute nothing.
func HeatIndex(monthlyMeans [12]float64) float64 {
	I := 0.0
	for _, t := range monthlyMeans {
		if types.IsMissing(t) || t <= 0 {
			continue
		}
		I += math.Pow(t/5.0, 1.514)
	}
	return I
}

// exponent is the empirical exponent a(I) of the Thornthwaite power law.
func exponent(I float64) float64 {
	return 6.75e-7*I*I*I - 7.71e-5*I*I + 1.792e-2*I + 0.49239
}

// unadjusted returns the standard-month (30 days of 12 hours) estimate in mm.
func unadjusted(tempC, I, a float64) float64 {
	switch {
	case tempC <= 0 || I <= 0:
		return 0
	case tempC >= hotThresholdC:
		return math.Max(0, -415.85+32.24*tempC-0.43*tempC*tempC)
	}
	return 16.0 * math.Pow(10.0*tempC/I, a)
}

// Monthly returns one estimate per calendar month touched by the temperature series
// together with the heat index used.
func Monthly(temperature types.Series, latitude float64) ([]MonthlyEstimate, float64, error) {
	if math.IsNaN(latitude) || math.Abs(latitude) > 90 {
		return nil, 0, types.InvalidParameter("latitude", "must lie within [-90, 90], got %g", latitude)
	}

	months := monthlyMeans(temperature)

	var climate [12]float64
	var counts [12]int
	for _, m := range months {
		if types.IsMissing(m.MeanTempC) {
			continue
		}
		climate[m.Month-1] += m.MeanTempC
		counts[m.Month-1]++
	}
	for i := range climate {
		if counts[i] == 0 {
			climate[i] = types.Missing()
			continue
		}
		climate[i] /= float64(counts[i])
	}

	I := HeatIndex(climate)
	a := exponent(I)
	for i := range months {
		m := &months[i]
		m.DayLength = solar.MeanMonthlyDayLength(m.Year, m.Month, latitude)
		if types.IsMissing(m.MeanTempC) {
			m.PETmm = types.Missing()
			continue
		}
		m.PETmm = unadjusted(m.MeanTempC, I, a) * (m.DayLength / 12.0) * (float64(m.Days) / 30.0)
	}
	return months, I, nil
}

// Daily apportions each monthly estimate evenly over the days of its month and
// returns a series on the same calendar as temperature. Days with missing
// temperature are missing.
func Daily(temperature types.Series, latitude float64) (types.Series, error) {
	months, _, err := Monthly(temperature, latitude)
	if err != nil {
		return types.Series{}, err
	}

	byMonth := make(map[[2]int]float64, len(months))
	for _, m := range months {
		rate := m.PETmm
		if !types.IsMissing(rate) {
			rate /= float64(m.Days)
		}
		byMonth[[2]int{m.Year, int(m.Month)}] = rate
	}

	out := types.NewSeries(temperature.Start, temperature.Len())
	for i := range out.Values {
		if !temperature.Valid(i) {
			out.Values[i] = types.Missing()
			continue
		}
		d := out.Date(i)
		out.Values[i] = byMonth[[2]int{d.Year(), int(d.Month())}]
	}
	return out, nil
}

func monthlyMeans(temperature types.Series) []MonthlyEstimate {
	var months []MonthlyEstimate
	var sum float64
	var n int

	flush := func() {
		m := &months[len(months)-1]
		if n == 0 {
			m.MeanTempC = types.Missing()
		} else {
			m.MeanTempC = sum / float64(n)
		}
		sum, n = 0, 0
	}

	for i, v := range temperature.Values {
		d := temperature.Date(i)
		if len(months) == 0 || months[len(months)-1].Year != d.Year() || months[len(months)-1].Month != d.Month() {
			if len(months) > 0 {
				flush()
			}
			months = append(months, MonthlyEstimate{
				Year:  d.Year(),
				Month: d.Month(),
				Days:  solar.DaysInMonth(d.Year(), d.Month()),
			})
		}
		if !types.IsMissing(v) {
			sum += v
			n++
		}
	}
	if len(months) > 0 {
		flush()
	}
	return months
}
