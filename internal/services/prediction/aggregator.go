package prediction

import (
	"math"

	"AlphaBot/internal/domain/models"

	"github.com/shopspring/decimal"
)

// DefaultHoldBandBps is the inclusive no-movement band for Hold signals (2%).
const DefaultHoldBandBps = 200

var bpsScale = decimal.NewFromInt(models.MaxConfidenceBps)

// Aggregator folds resolved signals into AccuracyMetrics.
type Aggregator struct {
	holdBandBps int64
}

// AggregatorOption configures Aggregator.
type AggregatorOption func(*Aggregator)

// WithHoldBand sets the Hold band in basis points of the reference price.
func WithHoldBand(bps int64) AggregatorOption {
	return func(a *Aggregator) {
		if bps >= 0 {
			a.holdBandBps = bps
		}
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{holdBandBps: DefaultHoldBandBps}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsDirectionallyCorrect classifies a resolved signal against referenceMicro.
// ok is false when s has no actual price yet.
func (a *Aggregator) IsDirectionallyCorrect(s *models.Signal, referenceMicro int64) (correct, ok bool) {
	if s.ActualPriceMicro == nil {
		return false, false
	}
	actual := *s.ActualPriceMicro
	switch s.Action {
	case models.ActionBuy:
		return actual >= referenceMicro, true
	case models.ActionSell:
		return actual <= referenceMicro, true
	case models.ActionHold:
		// |actual-ref|/ref <= band, cross-multiplied to stay exact
		move := decimal.NewFromInt(actual - referenceMicro).Abs().Mul(bpsScale)
		band := decimal.NewFromInt(referenceMicro).Mul(decimal.NewFromInt(a.holdBandBps))
		return move.LessThanOrEqual(band), true
	default:
		return false, true
	}
}

// Update returns m with the resolved signal folded in. It is a plain fold: folding the
// same signal twice counts it twice. Unresolved signals leave m unchanged.
func (a *Aggregator) Update(m models.AccuracyMetrics, s *models.Signal, referenceMicro, now int64) models.AccuracyMetrics {
	correct, ok := a.IsDirectionallyCorrect(s, referenceMicro)
	if !ok {
		return m
	}

	diff := models.DecimalFromMicro(s.PredictedPriceMicro - *s.ActualPriceMicro)
	m.SumSquaredErrors = m.SumSquaredErrors.Add(diff.Mul(diff))

	m.TotalPredictions++
	if correct {
		m.CorrectPredictions++
	}

	total := float64(m.TotalPredictions)
	m.DirectionalAccuracy = 100 * float64(m.CorrectPredictions) / total
	m.RMSE = math.Sqrt(m.SumSquaredErrors.InexactFloat64() / total)
	m.LastUpdated = now
	return m
}
