package prediction

import (
	"AlphaBot/internal/domain/models"
)

// CandidateFromRequest converts a submit request into fixed-point units. Values that
// cannot be represented are rejected here, since Validate only sees converted numbers:
// a probability outside [0, 1] or a price beyond the micro-unit range.
// confidence_bps wins when both confidence forms are given.
func CandidateFromRequest(r *models.SubmitPredictionRequest) (models.Signal, error) {
	s := models.Signal{
		Timestamp: r.Timestamp,
		Action:    r.Action,
		Reasoning: r.Reasoning,
	}
	switch {
	case r.ConfidenceBps != nil:
		s.ConfidenceBps = *r.ConfidenceBps
	case r.Confidence != nil:
		bps, ok := models.BpsFromProbability(*r.Confidence)
		if !ok {
			return models.Signal{}, outOfRange("confidence")
		}
		s.ConfidenceBps = bps
	}

	micro, ok := models.MicroFromDecimal(r.PredictedPrice)
	if !ok {
		return models.Signal{}, outOfRange("predicted_price")
	}
	s.PredictedPriceMicro = micro
	return s, nil
}

// ActualPriceFromRequest converts the observed price of a resolve request.
func ActualPriceFromRequest(r *models.ResolveSignalRequest) (int64, error) {
	micro, ok := models.MicroFromDecimal(r.ActualPrice)
	if !ok {
		return 0, outOfRange("actual_price")
	}
	return micro, nil
}
