// Package solar provides the astronomical day-length quantities needed by
// temperature-based evapotranspiration methods.
package solar

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// DeclinationDeg returns the apparent solar declination in degrees at time t, using
// the low-precision solar coordinates of Meeus chapter 25.
func DeclinationDeg(t time.Time) float64 {
	jd := julian.TimeToJD(t.UTC())
	T := (jd - 2451545.0) / 36525.0

	L0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	M := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	C := math.Sin(degToRad(M))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*M))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*M))*0.000289
	Ω := 125.04 - 1934.136*T
	λ := L0 + C - 0.00569 - 0.00478*math.Sin(degToRad(Ω))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	ε := eps0 + 0.00256*math.Cos(degToRad(Ω))

	return radToDeg(math.Asin(math.Sin(degToRad(ε)) * math.Sin(degToRad(λ))))
}

// DayLengthHours returns the number of hours between sunrise and sunset on the
// calendar day of t at the given latitude. The sun is treated as a point at the
// geometric horizon. Polar night yields 0 and polar day yields 24.
func DayLengthHours(t time.Time, latitude float64) float64 {
	y, m, d := t.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	δ := degToRad(DeclinationDeg(noon))
	φ := degToRad(latitude)

	cosH := -math.Tan(φ) * math.Tan(δ)
	switch {
	case cosH <= -1:
		return 24
	case cosH >= 1:
		return 0
	}
	return 2 * radToDeg(math.Acos(cosH)) / 15.0
}

// DaysInMonth returns the number of days of month m in year y (Gregorian calendar).
func DaysInMonth(y int, m time.Month) int {
	switch m {
	case time.February:
		if julian.LeapYearGregorian(y) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	}
	return 31
}

// MeanMonthlyDayLength returns the average day length in hours over the days of
// month m in year y.
func MeanMonthlyDayLength(y int, m time.Month, latitude float64) float64 {
	n := DaysInMonth(y, m)
	sum := 0.0
	for d := 1; d <= n; d++ {
		sum += DayLengthHours(time.Date(y, m, d, 0, 0, 0, 0, time.UTC), latitude)
	}
	return sum / float64(n)
}
