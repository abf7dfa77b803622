package glue

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Band is a weighted distribution summary: the mean and one value per percentile.
type Band struct {
	Mean        float64   `json:"mean" msgpack:"mean"`
	Percentiles []float64 `json:"percentiles" msgpack:"percentiles"`
	Count       int       `json:"count" msgpack:"count"`
}

// AnnualRecharge summarises calendar-year recharge totals over the behavioral members.
type AnnualRecharge struct {
	Year int  `json:"year" msgpack:"year"`
	Days int  `json:"days" msgpack:"days"`
	Band Band `json:"band" msgpack:"band"`
}

// ParameterPosterior summarises the weighted distribution of one sampled parameter.
type ParameterPosterior struct {
	Name string               `json:"name" msgpack:"name"`
	Band Band                 `json:"band" msgpack:"band"`
	Range types.ParameterRange `json:"range" msgpack:"range"`
}

// Estimate is the aggregated result of an ensemble run. Daily bands are indexed like
// the forcing calendar starting at Start.
type Estimate struct {
	Start       time.Time            `json:"start" msgpack:"start"`
	Percentiles []float64            `json:"percentiles" msgpack:"percentiles"`
	Recharge    []Band               `json:"recharge" msgpack:"recharge"`
	Level       []Band               `json:"level" msgpack:"level"`
	Annual      []AnnualRecharge     `json:"annual" msgpack:"annual"`
	Posterior   []ParameterPosterior `json:"posterior" msgpack:"posterior"`
	Samples     int                  `json:"samples" msgpack:"samples"`
	Behavioral  int                  `json:"behavioral" msgpack:"behavioral"`
	Failed      int                  `json:"failed" msgpack:"failed"`
}

// Date returns the calendar date of daily band i.
func (e *Estimate) Date(i int) time.Time {
	return e.Start.AddDate(0, 0, i)
}

// RechargeSeries returns the mean recharge, or percentile k when k >= 0, as a series.
func (e *Estimate) RechargeSeries(k int) types.Series {
	s := types.NewSeries(e.Start, len(e.Recharge))
	for i, b := range e.Recharge {
		if k < 0 {
			s.Values[i] = b.Mean
		} else {
			s.Values[i] = b.Percentiles[k]
		}
	}
	return s
}

func aggregate(ens *Ensemble, ranges []types.ParameterRange, percentiles []float64) *Estimate {
	members := ens.Behavioral()
	first := members[0]
	n := first.Recharge.Len()

	est := &Estimate{
		Start:       first.Recharge.Start,
		Percentiles: append([]float64(nil), percentiles...),
		Recharge:    make([]Band, n),
		Level:       make([]Band, n),
		Samples:     len(ens.Members),
		Behavioral:  len(members),
		Failed:      ens.FailedCount(),
	}

	values := make([]float64, len(members))
	weights := make([]float64, len(members))
	collect := func(get func(m *Member) float64) Band {
		x, w := values[:0], weights[:0]
		for _, m := range members {
			v := get(m)
			if types.IsMissing(v) {
				continue
			}
			x = append(x, v)
			w = append(w, m.Weight)
		}
		return weightedBand(x, w, percentiles)
	}

	for i := 0; i < n; i++ {
		est.Recharge[i] = collect(func(m *Member) float64 { return m.Recharge.Values[i] })
		est.Level[i] = collect(func(m *Member) float64 { return m.Level.Values[i] })
	}

	est.Annual = annualTotals(members, percentiles)

	for _, r := range ranges {
		name := r.Name
		est.Posterior = append(est.Posterior, ParameterPosterior{
			Name:  name,
			Range: r,
			Band:  collect(func(m *Member) float64 { return m.Parameters[name] }),
		})
	}
	return est
}

func annualTotals(members []*Member, percentiles []float64) []AnnualRecharge {
	if len(members) == 0 {
		return nil
	}
	cal := members[0].Recharge

	type yearSpan struct{ year, from, to int }
	var years []yearSpan
	for i := 0; i < cal.Len(); i++ {
		y := cal.Date(i).Year()
		if len(years) == 0 || years[len(years)-1].year != y {
			years = append(years, yearSpan{year: y, from: i})
		}
		years[len(years)-1].to = i + 1
	}

	out := make([]AnnualRecharge, 0, len(years))
	for _, ys := range years {
		x := make([]float64, 0, len(members))
		w := make([]float64, 0, len(members))
		for _, m := range members {
			sum, valid := 0.0, 0
			for i := ys.from; i < ys.to; i++ {
				if v := m.Recharge.Values[i]; !types.IsMissing(v) {
					sum += v
					valid++
				}
			}
			if valid == 0 {
				continue
			}
			x = append(x, sum)
			w = append(w, m.Weight)
		}
		out = append(out, AnnualRecharge{
			Year: ys.year,
			Days: ys.to - ys.from,
			Band: weightedBand(x, w, percentiles),
		})
	}
	return out
}

// weightedBand returns the weighted mean and weighted empirical percentiles of x.
// Weights are renormalised over the supplied values; if they sum to zero every value
// counts equally. An empty input yields missing values.
func weightedBand(x, w []float64, percentiles []float64) Band {
	b := Band{Percentiles: make([]float64, len(percentiles)), Count: len(x)}
	if len(x) == 0 {
		b.Mean = types.Missing()
		for k := range b.Percentiles {
			b.Percentiles[k] = types.Missing()
		}
		return b
	}

	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, c int) bool { return x[idx[a]] < x[idx[c]] })

	xs := make([]float64, len(x))
	ws := make([]float64, len(x))
	total := 0.0
	for i, j := range idx {
		xs[i], ws[i] = x[j], w[j]
		total += w[j]
	}
	if !(total > 0) {
		for i := range ws {
			ws[i] = 1
		}
	}

	b.Mean = stat.Mean(xs, ws)
	for k, p := range percentiles {
		switch {
		case p <= 0:
			b.Percentiles[k] = xs[0]
		case p >= 1:
			b.Percentiles[k] = xs[len(xs)-1]
		default:
			b.Percentiles[k] = stat.Quantile(p, stat.Empirical, xs, ws)
		}
	}
	return b
}

// Ordered reports whether the percentiles of b are non-decreasing.
func (b Band) Ordered() bool {
	for k := 1; k < len(b.Percentiles); k++ {
		if math.IsNaN(b.Percentiles[k]) || math.IsNaN(b.Percentiles[k-1]) {
			continue
		}
		if b.Percentiles[k] < b.Percentiles[k-1] {
			return false
		}
	}
	return true
}
