package prediction

import (
	"fmt"

	"AlphaBot/internal/domain/models"
)

// ReferencePolicy picks the price a resolved signal's direction is judged against.
type ReferencePolicy string

const (
	// RefSignalPredicted judges against the resolved signal's own predicted price.
	RefSignalPredicted ReferencePolicy = "signal_predicted"
	// RefPreviousPredicted judges against the predicted price of the last resolved signal.
	RefPreviousPredicted ReferencePolicy = "previous_predicted"
	// RefPreviousActual judges against the observed price of the last resolved signal.
	RefPreviousActual ReferencePolicy = "previous_actual"
)

func ParseReferencePolicy(s string) (ReferencePolicy, error) {
	switch p := ReferencePolicy(s); p {
	case RefSignalPredicted, RefPreviousPredicted, RefPreviousActual:
		return p, nil
	case "":
		return RefSignalPredicted, nil
	default:
		return "", fmt.Errorf("unknown reference policy %q", s)
	}
}

// ReferencePrice returns the reference in micro-units. The previous-* policies fall back
// to the current signal's predicted price when nothing has been resolved before.
func (p ReferencePolicy) ReferencePrice(previous, current *models.Signal) int64 {
	switch p {
	case RefPreviousPredicted:
		if previous != nil {
			return previous.PredictedPriceMicro
		}
	case RefPreviousActual:
		if previous != nil && previous.ActualPriceMicro != nil {
			return *previous.ActualPriceMicro
		}
	}
	return current.PredictedPriceMicro
}

// MismatchPolicy decides what a resolve naming the wrong timestamp does.
type MismatchPolicy string

const (
	// MismatchIgnore drops the resolve silently.
	MismatchIgnore MismatchPolicy = "ignore"
	// MismatchReject surfaces ErrResolutionMismatch.
	MismatchReject MismatchPolicy = "reject"
)

func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch p := MismatchPolicy(s); p {
	case MismatchIgnore, MismatchReject:
		return p, nil
	case "":
		return MismatchIgnore, nil
	default:
		return "", fmt.Errorf("unknown mismatch policy %q", s)
	}
}

// ResolutionPolicy groups the configurable parts of the resolve transition.
type ResolutionPolicy struct {
	Reference  ReferencePolicy
	OnMismatch MismatchPolicy
}

// DefaultResolutionPolicy keeps the permissive mismatch handling and judges a signal
// against its own predicted price.
func DefaultResolutionPolicy() ResolutionPolicy {
	return ResolutionPolicy{Reference: RefSignalPredicted, OnMismatch: MismatchIgnore}
}
