package mrc

import (
	"math"
)

// Families lists every recession model family in order of increasing complexity.
var Families = []ModelKind{Linear, Exponential, Quadratic}

// Comparison holds the fit of every model family to the same segments.
type Comparison struct {
	Models    []Model
	BestByR2  Model
	BestByAIC Model
	BestByBIC Model
}

// AIC returns the Akaike information criterion of the fit. Lower is better.
func (m Model) AIC() float64 {
	return m.criterion(2)
}

// BIC returns the Bayesian information criterion of the fit. Lower is better and it
// penalizes extra coefficients more than AIC once there are more than 7 points.
func (m Model) BIC() float64 {
	return m.criterion(math.Log(float64(m.Points)))
}

func (m Model) criterion(penalty float64) float64 {
	n := float64(m.Points)
	if n == 0 {
		return math.Inf(1)
	}
	k := float64(len(m.Coefficients))
	if m.SSE == 0 {
		return math.Inf(-1)
	}
	return n*math.Log(m.SSE/n) + penalty*k
}

// Compare fits each family in Families to segs. A family that cannot be fitted is
// left out; the error of the first family is returned when none can.
func Compare(segs []Segment) (Comparison, error) {
	var (
		c        Comparison
		firstErr error
	)
	for _, kind := range Families {
		m, err := FitSegments(segs, kind)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		// A fallback duplicates the linear fit.
		if m.FellBack {
			continue
		}
		c.Models = append(c.Models, m)
	}
	if len(c.Models) == 0 {
		return c, firstErr
	}

	c.BestByR2, c.BestByAIC, c.BestByBIC = c.Models[0], c.Models[0], c.Models[0]
	for _, m := range c.Models[1:] {
		if m.RSquared > c.BestByR2.RSquared {
			c.BestByR2 = m
		}
		if m.AIC() < c.BestByAIC.AIC() {
			c.BestByAIC = m
		}
		if m.BIC() < c.BestByBIC.BIC() {
			c.BestByBIC = m
		}
	}
	return c, nil
}
