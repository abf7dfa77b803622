// Package storage defines the persistence contract for finished recharge runs and
// the encoding shared by its backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chrissnell/wellrecharge/internal/glue"
	"github.com/chrissnell/wellrecharge/internal/mrc"
)

// ErrRunNotFound is returned by LoadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store is implemented by every run storage backend.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context) ([]Summary, error)
	LoadRun(ctx context.Context, id uuid.UUID) (*Run, error)
	Close() error
}

// Run is one finished estimation: the fitted recession curve, the aggregated
// estimate and the scored ensemble.
type Run struct {
	ID       uuid.UUID      `msgpack:"id"`
	Site     string         `msgpack:"site"`
	Latitude float64        `msgpack:"latitude"`
	Created  time.Time      `msgpack:"created"`
	Curve    mrc.Model      `msgpack:"curve"`
	Estimate *glue.Estimate `msgpack:"estimate"`
	Ensemble *glue.Ensemble `msgpack:"ensemble"`
}

// NewRun stamps a new run with a random ID and the current time.
func NewRun(site string, latitude float64, curve mrc.Model, est *glue.Estimate, ens *glue.Ensemble) *Run {
	return &Run{
		ID:       uuid.New(),
		Site:     site,
		Latitude: latitude,
		Created:  time.Now().UTC(),
		Curve:    curve,
		Estimate: est,
		Ensemble: ens,
	}
}

// Summary is the listing entry of a stored run.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Site       string    `json:"site"`
	Created    time.Time `json:"created"`
	Start      time.Time `json:"start"`
	Days       int       `json:"days"`
	Samples    int       `json:"samples"`
	Behavioral int       `json:"behavioral"`
	Failed     int       `json:"failed"`
	Likelihood string    `json:"likelihood"`
	Threshold  float64   `json:"threshold"`
	Seed       int64     `json:"seed"`
}

// Summarize returns the listing entry of run.
func (r *Run) Summarize() Summary {
	s := Summary{ID: r.ID, Site: r.Site, Created: r.Created}
	if e := r.Estimate; e != nil {
		s.Start = e.Start
		s.Days = len(e.Recharge)
		s.Samples = e.Samples
		s.Behavioral = e.Behavioral
		s.Failed = e.Failed
	}
	if e := r.Ensemble; e != nil {
		s.Likelihood = string(e.Likelihood)
		s.Threshold = e.Threshold
		s.Seed = e.Seed
	}
	return s
}

// Encode serializes a run with msgpack. Missing values survive as NaN.
func Encode(r *Run) ([]byte, error) {
	return msgpack.Marshal(r)
}

// Decode is the inverse of Encode. Timestamps are returned in UTC so that calendar
// dates do not shift with the local zone.
func Decode(b []byte) (*Run, error) {
	r := &Run{}
	if err := msgpack.Unmarshal(b, r); err != nil {
		return nil, err
	}

	r.Created = r.Created.UTC()
	if r.Estimate != nil {
		r.Estimate.Start = r.Estimate.Start.UTC()
	}
	if r.Ensemble != nil {
		for i := range r.Ensemble.Members {
			m := &r.Ensemble.Members[i]
			m.Recharge.Start = m.Recharge.Start.UTC()
			m.Level.Start = m.Level.Start.UTC()
		}
	}
	return r, nil
}
