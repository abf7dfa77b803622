package mrc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// ModelKind names a recession model family. Every family predicts the daily level
// change as a polynomial in the current level: dh = c0 + c1*h + c2*h².
type ModelKind string

const (
	// Exponential: dh = c0 + c1*h, an exponential approach to the asymptote -c0/c1
	// with decay constant -ln(1+c1) per day. Falls back to Linear when the fit is
	// not a decay.
	Exponential ModelKind = "exponential"
	// Linear: dh = c0, a constant recession rate.
	Linear ModelKind = "linear"
	// Quadratic: dh = c0 + c1*h + c2*h².
	Quadratic ModelKind = "quadratic"
)

// MinSegments is the number of recession segments required to fit a curve.
const MinSegments = 2

// Model is a fitted master recession curve. It is immutable once returned.
type Model struct {
	Kind         ModelKind `json:"kind" msgpack:"kind"`
	Coefficients []float64 `json:"coefficients" msgpack:"coefficients"`
	DecayPerDay  float64   `json:"decay_per_day" msgpack:"decay_per_day"`
	Asymptote    float64   `json:"asymptote" msgpack:"asymptote"`
	RSquared     float64   `json:"r_squared" msgpack:"r_squared"`
	RMSE         float64   `json:"rmse" msgpack:"rmse"`
	SSE          float64   `json:"sse" msgpack:"sse"`
	Points       int       `json:"points" msgpack:"points"`
	Segments     int       `json:"segments" msgpack:"segments"`
	FellBack     bool      `json:"fell_back,omitempty" msgpack:"fell_back,omitempty"`
}

// Rate returns the predicted daily level change at level h.
func (m Model) Rate(h float64) float64 {
	r, p := 0.0, 1.0
	for _, c := range m.Coefficients {
		r += c * p
		p *= h
	}
	return r
}

// Step returns the level one day after h in the absence of recharge.
func (m Model) Step(h float64) float64 {
	return h + m.Rate(h)
}

// Predict returns the recession hydrograph of the given length starting at h0.
func (m Model) Predict(h0 float64, days int) []float64 {
	out := make([]float64, days)
	h := h0
	for i := range out {
		out[i] = h
		h = m.Step(h)
	}
	return out
}

// Fit segments levels according to sel (or takes sel.Manual when given) and fits the
// selected recession model to all segments jointly.
func Fit(levels, rain types.Series, sel Selection) (Model, error) {
	segs := Segments(levels, rain, sel)
	kind := sel.Model
	if kind == "" {
		kind = Exponential
	}
	return FitSegments(segs, kind)
}

// ratePoint is one observed daily change and the level it started from.
type ratePoint struct {
	level, rate float64
}

func ratePoints(segs []Segment) []ratePoint {
	var pts []ratePoint
	for _, s := range segs {
		for k := 1; k < len(s.Levels); k++ {
			dt := s.Times[k] - s.Times[k-1]
			if dt <= 0 {
				continue
			}
			pts = append(pts, ratePoint{
				level: s.Levels[k-1],
				rate:  (s.Levels[k] - s.Levels[k-1]) / dt,
			})
		}
	}
	return pts
}

// FitSegments fits kind to the daily recession rates of all segments by a single
// joint least-squares problem.
func FitSegments(segs []Segment, kind ModelKind) (Model, error) {
	if len(segs) < MinSegments {
		return Model{}, &types.InsufficientDataError{What: "recession segments", Found: len(segs), Required: MinSegments}
	}

	var degree int
	switch kind {
	case Linear:
		degree = 0
	case Exponential:
		degree = 1
	case Quadratic:
		degree = 2
	default:
		return Model{}, types.InvalidParameter("mrc.model", "unknown recession model %q", kind)
	}

	pts := ratePoints(segs)
	if len(pts) < degree+1 {
		return Model{}, &types.InsufficientDataError{What: "recession rate points", Found: len(pts), Required: degree + 1}
	}

	m := Model{Kind: kind, Segments: len(segs), Points: len(pts), Asymptote: math.NaN()}

	coeffs, err := leastSquares(pts, degree)
	switch {
	case kind == Linear:
	case err != nil:
		m.FellBack = true
	case kind == Exponential && !(coeffs[1] > -1 && coeffs[1] < 0):
		m.FellBack = true
	}
	if m.FellBack || kind == Linear {
		m.Kind = Linear
		if coeffs, err = leastSquares(pts, 0); err != nil {
			return Model{}, fmt.Errorf("fitting constant recession rate: %w", err)
		}
	}
	m.Coefficients = coeffs

	if m.Kind == Exponential {
		m.DecayPerDay = -math.Log1p(coeffs[1])
		m.Asymptote = -coeffs[0] / coeffs[1]
	}

	m.SSE, m.RSquared = m.quality(pts)
	m.RMSE = math.Sqrt(m.SSE / float64(len(pts)))
	return m, nil
}

// leastSquares solves rate = Σ c_k level^k with a QR decomposition of the
// Vandermonde matrix.
func leastSquares(pts []ratePoint, degree int) ([]float64, error) {
	n, p := len(pts), degree+1
	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, pt := range pts {
		v := 1.0
		for j := 0; j < p; j++ {
			X.Set(i, j, v)
			v *= pt.level
		}
		y.SetVec(i, pt.rate)
	}

	var qr mat.QR
	qr.Factorize(X)
	c := mat.NewVecDense(p, nil)
	if err := qr.SolveVecTo(c, false, y); err != nil {
		return nil, err
	}

	coeffs := make([]float64, p)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j)
		if math.IsNaN(coeffs[j]) || math.IsInf(coeffs[j], 0) {
			return nil, fmt.Errorf("non-finite coefficient %d", j)
		}
	}
	return coeffs, nil
}

func (m Model) quality(pts []ratePoint) (sse, r2 float64) {
	rates := make([]float64, len(pts))
	est := make([]float64, len(pts))
	for i, pt := range pts {
		rates[i] = pt.rate
		est[i] = m.Rate(pt.level)
		d := pt.rate - est[i]
		sse += d * d
	}
	if stat.Variance(rates, nil) == 0 || len(pts) < 2 {
		if sse == 0 {
			return sse, 1
		}
		return sse, 0
	}
	return sse, stat.RSquaredFrom(est, rates, nil)
}

// ConstantSSE returns the squared residual of a constant-rate baseline dh = c on the
// given segments. Any fitted model's SSE is at most the minimum of this over c.
func ConstantSSE(segs []Segment, c float64) float64 {
	sse := 0.0
	for _, pt := range ratePoints(segs) {
		d := pt.rate - c
		sse += d * d
	}
	return sse
}
