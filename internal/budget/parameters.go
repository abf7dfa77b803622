// Package budget runs a daily lumped soil-moisture bucket and converts the water it
// drains below the root zone into a simulated well hydrograph.
package budget

import (
	"math"

	"github.com/chrissnell/wellrecharge/internal/types"
)

// Parameter names understood by ParametersFromSet.
const (
	MaxStorage          = "max_storage"          // root-zone capacity, mm
	FieldCapacity       = "field_capacity"       // drainage threshold as a fraction of max_storage
	RechargeCoefficient = "recharge_coefficient" // fraction of the storage above field capacity drained per day
	LagDays             = "lag_days"             // travel time from root zone to water table, days
	SpecificYield       = "specific_yield"       // aquifer specific yield, dimensionless
)

// Names returns every parameter name in a stable order.
func Names() []string {
	return []string{MaxStorage, FieldCapacity, RechargeCoefficient, LagDays, SpecificYield}
}

// Parameters is a validated parameter set for one simulation.
type Parameters struct {
	MaxStorage          float64
	FieldCapacity       float64
	RechargeCoefficient float64
	LagDays             int
	SpecificYield       float64
}

// Validate checks the physical bounds of every parameter.
func (p Parameters) Validate() error {
	switch {
	case !(p.MaxStorage > 0) || math.IsInf(p.MaxStorage, 0):
		return types.InvalidParameter(MaxStorage, "must be positive and finite, got %g", p.MaxStorage)
	case !(p.FieldCapacity >= 0 && p.FieldCapacity <= 1):
		return types.InvalidParameter(FieldCapacity, "must lie within [0, 1], got %g", p.FieldCapacity)
	case !(p.RechargeCoefficient >= 0 && p.RechargeCoefficient <= 1):
		return types.InvalidParameter(RechargeCoefficient, "must lie within [0, 1], got %g", p.RechargeCoefficient)
	case p.LagDays < 0:
		return types.InvalidParameter(LagDays, "must not be negative, got %d", p.LagDays)
	case !(p.SpecificYield > 0 && p.SpecificYield <= 1):
		return types.InvalidParameter(SpecificYield, "must lie within (0, 1], got %g", p.SpecificYield)
	}
	return nil
}

// Set returns the parameters as a name/value map.
func (p Parameters) Set() types.ParameterSet {
	return types.ParameterSet{
		MaxStorage:          p.MaxStorage,
		FieldCapacity:       p.FieldCapacity,
		RechargeCoefficient: p.RechargeCoefficient,
		LagDays:             float64(p.LagDays),
		SpecificYield:       p.SpecificYield,
	}
}

// ParametersFromSet converts a sampled parameter set. Every name in Names must be
// present; lag_days is rounded to whole days.
func ParametersFromSet(set types.ParameterSet) (Parameters, error) {
	for name := range set {
		if !known(name) {
			return Parameters{}, types.InvalidParameter(name, "unknown model parameter")
		}
	}
	for _, name := range Names() {
		if _, ok := set[name]; !ok {
			return Parameters{}, types.InvalidParameter(name, "missing from parameter set")
		}
	}

	p := Parameters{
		MaxStorage:          set[MaxStorage],
		FieldCapacity:       set[FieldCapacity],
		RechargeCoefficient: set[RechargeCoefficient],
		LagDays:             int(math.Round(set[LagDays])),
		SpecificYield:       set[SpecificYield],
	}
	return p, p.Validate()
}

func known(name string) bool {
	for _, n := range Names() {
		if n == name {
			return true
		}
	}
	return false
}
