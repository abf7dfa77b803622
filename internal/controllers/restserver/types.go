package restserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/chrissnell/wellrecharge/internal/mrc"
	"github.com/chrissnell/wellrecharge/internal/types"
)

// Missing values are encoded as null in every response.

// BandResponse is a weighted distribution summary; Percentiles align with the
// percentiles listed on the enclosing response.
type BandResponse struct {
	Mean        *float64   `json:"mean"`
	Percentiles []*float64 `json:"percentiles"`
	Count       int        `json:"count"`
}

// DailyBand is the band of one calendar day
type DailyBand struct {
	Date string `json:"date"`
	BandResponse
}

// SeriesResponse holds the daily bands of one output variable
type SeriesResponse struct {
	RunID       uuid.UUID   `json:"run_id"`
	Variable    string      `json:"variable"`
	Percentiles []float64   `json:"percentiles"`
	Days        []DailyBand `json:"days"`
}

// AnnualResponse is a calendar-year recharge total
type AnnualResponse struct {
	Year int `json:"year"`
	Days int `json:"days"`
	BandResponse
}

// PosteriorResponse is the weighted distribution of a sampled parameter
type PosteriorResponse struct {
	Name string               `json:"name"`
	Range types.ParameterRange `json:"range"`
	BandResponse
}

// CurveResponse describes the fitted master recession curve
type CurveResponse struct {
	Kind         mrc.ModelKind `json:"kind"`
	Coefficients []*float64    `json:"coefficients"`
	DecayPerDay  *float64      `json:"decay_per_day"`
	Asymptote    *float64      `json:"asymptote"`
	RSquared     *float64      `json:"r_squared"`
	RMSE         *float64      `json:"rmse"`
	Points       int           `json:"points"`
	Segments     int           `json:"segments"`
	FellBack     bool          `json:"fell_back"`
}

// RunResponse is the detail view of one run
type RunResponse struct {
	ID          uuid.UUID           `json:"id"`
	Site        string              `json:"site"`
	Latitude    float64             `json:"latitude"`
	Created     time.Time           `json:"created"`
	Start       string              `json:"start"`
	Days        int                 `json:"days"`
	Samples     int                 `json:"samples"`
	Behavioral  int                 `json:"behavioral"`
	Failed      int                 `json:"failed"`
	Likelihood  string              `json:"likelihood"`
	Threshold   float64             `json:"threshold"`
	Seed        int64               `json:"seed"`
	Percentiles []float64           `json:"percentiles"`
	Curve       CurveResponse       `json:"curve"`
	Annual      []AnnualResponse    `json:"annual"`
	Posterior   []PosteriorResponse `json:"posterior"`
}

// MemberResponse is one ensemble member
type MemberResponse struct {
	ID         int                `json:"id"`
	Parameters types.ParameterSet `json:"parameters"`
	Score      *float64           `json:"score"`
	Behavioral bool               `json:"behavioral"`
	Weight     float64            `json:"weight"`
	Error      string             `json:"error,omitempty"`
}
