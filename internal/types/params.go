package types

import (
	"math"
	"sort"
)

// ParameterSet maps a model parameter name to its value.
type ParameterSet map[string]float64

// Names returns the parameter names in sorted order.
func (p ParameterSet) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of the set.
func (p ParameterSet) Clone() ParameterSet {
	c := make(ParameterSet, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// ParameterRange is the prescribed [Min, Max] interval of one sampled parameter.
// Log ranges are sampled uniformly in log space and require Min > 0.
type ParameterRange struct {
	Name string  `json:"name" msgpack:"name"`
	Min  float64 `json:"min" msgpack:"min"`
	Max  float64 `json:"max" msgpack:"max"`
	Log  bool    `json:"log,omitempty" msgpack:"log,omitempty"`
}

// Validate checks that the range is well formed.
func (r ParameterRange) Validate() error {
	switch {
	case r.Name == "":
		return InvalidParameter("range", "parameter name is empty")
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0):
		return InvalidParameter(r.Name, "range bounds must be finite")
	case r.Min > r.Max:
		return InvalidParameter(r.Name, "inverted range [%g, %g]", r.Min, r.Max)
	case r.Log && r.Min <= 0:
		return InvalidParameter(r.Name, "log range requires a positive minimum, got %g", r.Min)
	}
	return nil
}

// Transform maps a unit-interval quantile u onto the range.
func (r ParameterRange) Transform(u float64) float64 {
	if r.Log {
		lo, hi := math.Log(r.Min), math.Log(r.Max)
		return math.Max(r.Min, math.Min(r.Max, math.Exp(lo+u*(hi-lo))))
	}
	return r.Min + u*(r.Max-r.Min)
}

// Contains reports whether v lies inside the range.
func (r ParameterRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}
