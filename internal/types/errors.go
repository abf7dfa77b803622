package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for the four failure kinds. Every typed error below matches exactly one
// of them through errors.Is, so callers can branch on the kind and use errors.As when
// they need the details.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrForcingGap       = errors.New("forcing gap")
	ErrNoBehavioralSets = errors.New("no behavioral parameter sets")
)

// InsufficientDataError reports that too few usable recession segments (or points)
// were available to fit a master recession curve.
type InsufficientDataError struct {
	What     string
	Found    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d %s found, %d required", e.Found, e.What, e.Required)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// InvalidParameterError reports an out-of-range configuration value.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Name, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// InvalidParameter is a shorthand for building an InvalidParameterError.
func InvalidParameter(name, format string, args ...interface{}) error {
	return &InvalidParameterError{Name: name, Reason: fmt.Sprintf(format, args...)}
}

// ForcingGapError reports a run of missing forcing days longer than tolerated.
type ForcingGapError struct {
	Start   time.Time
	Days    int
	MaxDays int
}

func (e *ForcingGapError) Error() string {
	return fmt.Sprintf("forcing gap of %d days starting %s exceeds tolerance of %d days",
		e.Days, e.Start.Format("2006-01-02"), e.MaxDays)
}

func (e *ForcingGapError) Is(target error) bool { return target == ErrForcingGap }

// NoBehavioralSetsError reports that no ensemble member reached the likelihood threshold.
// The caller should relax the threshold or widen the parameter ranges and retry.
type NoBehavioralSetsError struct {
	Samples   int
	Failed    int
	Threshold float64
	BestScore float64
}

func (e *NoBehavioralSetsError) Error() string {
	if e.Failed == e.Samples {
		return fmt.Sprintf("no behavioral parameter sets: all %d simulations failed", e.Samples)
	}
	return fmt.Sprintf("no behavioral parameter sets: best score %.4f below threshold %.4f (%d samples, %d failed)",
		e.BestScore, e.Threshold, e.Samples, e.Failed)
}

func (e *NoBehavioralSetsError) Is(target error) bool { return target == ErrNoBehavioralSets }
