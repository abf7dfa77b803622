package glue

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Member is one sampled parameter set and what became of it.
type Member struct {
	ID         int                `json:"id" msgpack:"id"`
	Parameters types.ParameterSet `json:"parameters" msgpack:"parameters"`
	Score      float64            `json:"score" msgpack:"score"`
	Behavioral bool               `json:"behavioral" msgpack:"behavioral"`
	Weight     float64            `json:"weight" msgpack:"weight"`
	Error      string             `json:"error,omitempty" msgpack:"error,omitempty"`

	// Recharge and Level are kept for behavioral members, and for every successful
	// member when Config.KeepSeries is set.
	Recharge types.Series `json:"-" msgpack:"recharge,omitempty"`
	Level    types.Series `json:"-" msgpack:"level,omitempty"`

	err error
}

// Err returns the simulation or scoring failure of the member, if any.
func (m *Member) Err() error {
	return m.err
}

// Failed reports whether the member could not be simulated or scored.
func (m *Member) Failed() bool {
	return m.err != nil || m.Error != ""
}

func (m *Member) fail(err error) {
	m.err = err
	m.Error = err.Error()
	m.Score = math.NaN()
	m.Behavioral = false
}

// Ensemble is the full record of an ensemble run keyed by sample ID.
type Ensemble struct {
	Likelihood Likelihood `json:"likelihood" msgpack:"likelihood"`
	Threshold  float64    `json:"threshold" msgpack:"threshold"`
	Seed       int64      `json:"seed" msgpack:"seed"`
	Members    []Member   `json:"members" msgpack:"members"`
}

// Behavioral returns the members retained for aggregation, in ID order.
func (e *Ensemble) Behavioral() []*Member {
	var out []*Member
	for i := range e.Members {
		if e.Members[i].Behavioral {
			out = append(out, &e.Members[i])
		}
	}
	return out
}

// FailedCount returns the number of members that could not be evaluated.
func (e *Ensemble) FailedCount() int {
	n := 0
	for i := range e.Members {
		if e.Members[i].Failed() {
			n++
		}
	}
	return n
}

// BestScore returns the highest valid score, or NaN when every member failed.
func (e *Ensemble) BestScore() float64 {
	best := math.NaN()
	for i := range e.Members {
		s := e.Members[i].Score
		if math.IsNaN(s) {
			continue
		}
		if math.IsNaN(best) || s > best {
			best = s
		}
	}
	return best
}

// Failures combines the per-member errors into one error, or nil.
func (e *Ensemble) Failures() error {
	var err error
	for i := range e.Members {
		m := &e.Members[i]
		if !m.Failed() {
			continue
		}
		cause := m.err
		if cause == nil {
			cause = fmt.Errorf("%s", m.Error)
		}
		err = multierr.Append(err, fmt.Errorf("member %d: %w", m.ID, cause))
	}
	return err
}

// assignWeights marks behavioral members and gives them weights proportional to
// score - threshold, normalised to sum to one. When every behavioral score equals
// the threshold the weights are equal.
func (e *Ensemble) assignWeights() int {
	var total float64
	var n int
	for i := range e.Members {
		m := &e.Members[i]
		m.Weight = 0
		m.Behavioral = !m.Failed() && m.Score >= e.Threshold
		if m.Behavioral {
			m.Weight = m.Score - e.Threshold
			total += m.Weight
			n++
		}
	}
	for i := range e.Members {
		m := &e.Members[i]
		if !m.Behavioral {
			continue
		}
		if total > 0 {
			m.Weight /= total
		} else {
			m.Weight = 1 / float64(n)
		}
	}
	return n
}
