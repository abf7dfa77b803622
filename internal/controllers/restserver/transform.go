package restserver

import (
	"math"
	"time"

	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/storage"
	"github.com/chrissnell/wellrecharge/internal/types"
)

const dateLayout = "2006-01-02"

// nullable maps missing and non-finite values to null.
func nullable(v float64) *float64 {
	if types.IsMissing(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func nullables(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		out[i] = nullable(v)
	}
	return out
}

func transformBand(b glue.Band) BandResponse {
	return BandResponse{Mean: nullable(b.Mean), Percentiles: nullables(b.Percentiles), Count: b.Count}
}

func transformCurve(m mrc.Model) CurveResponse {
	return CurveResponse{
		Kind:         m.Kind,
		Coefficients: nullables(m.Coefficients),
		DecayPerDay:  nullable(m.DecayPerDay),
		Asymptote:    nullable(m.Asymptote),
		RSquared:     nullable(m.RSquared),
		RMSE:         nullable(m.RMSE),
		Points:       m.Points,
		Segments:     m.Segments,
		FellBack:     m.FellBack,
	}
}

func transformRun(run *storage.Run) RunResponse {
	sum := run.Summarize()
	resp := RunResponse{
		ID:         run.ID,
		Site:       run.Site,
		Latitude:   run.Latitude,
		Created:    run.Created,
		Days:       sum.Days,
		Samples:    sum.Samples,
		Behavioral: sum.Behavioral,
		Failed:     sum.Failed,
		Likelihood: sum.Likelihood,
		Threshold:  sum.Threshold,
		Seed:       sum.Seed,
		Curve:      transformCurve(run.Curve),
	}

	if est := run.Estimate; est != nil {
		resp.Start = est.Start.Format(dateLayout)
		resp.Percentiles = est.Percentiles
		for _, a := range est.Annual {
			resp.Annual = append(resp.Annual, AnnualResponse{Year: a.Year, Days: a.Days, BandResponse: transformBand(a.Band)})
		}
		for _, p := range est.Posterior {
			resp.Posterior = append(resp.Posterior, PosteriorResponse{Name: p.Name, Range: p.Range, BandResponse: transformBand(p.Band)})
		}
	}
	return resp
}

// transformSeries returns the daily bands of variable for days [from, to).
func transformSeries(run *storage.Run, variable string, bands []glue.Band, from, to int) SeriesResponse {
	resp := SeriesResponse{
		RunID:       run.ID,
		Variable:    variable,
		Percentiles: run.Estimate.Percentiles,
		Days:        []DailyBand{},
	}
	for i := from; i < to; i++ {
		resp.Days = append(resp.Days, DailyBand{
			Date:         run.Estimate.Date(i).Format(dateLayout),
			BandResponse: transformBand(bands[i]),
		})
	}
	return resp
}

// transformMembers converts the members; a non-nil behavioral keeps only members
// with that classification.
func transformMembers(ens *glue.Ensemble, behavioral *bool) []MemberResponse {
	out := make([]MemberResponse, 0, len(ens.Members))
	for _, m := range ens.Members {
		if behavioral != nil && m.Behavioral != *behavioral {
			continue
		}
		out = append(out, MemberResponse{
			ID:         m.ID,
			Parameters: m.Parameters,
			Score:      nullable(m.Score),
			Behavioral: m.Behavioral,
			Weight:     m.Weight,
			Error:      m.Error,
		})
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}
