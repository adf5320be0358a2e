package models

import "github.com/shopspring/decimal"

// AccuracyMetrics is the running aggregate over every resolved signal of a bot.
// SumSquaredErrors is kept exactly (squared price units) and is never part of a query view.
type AccuracyMetrics struct {
	TotalPredictions    uint64          `json:"total_predictions"`
	CorrectPredictions  uint64          `json:"correct_predictions"`
	DirectionalAccuracy float64         `json:"directional_accuracy"`
	RMSE                float64         `json:"rmse"`
	SumSquaredErrors    decimal.Decimal `json:"sum_squared_errors"`
	LastUpdated         int64           `json:"last_updated"`
}

// AccuracyView is the externally observable part of AccuracyMetrics.
type AccuracyView struct {
	TotalPredictions    uint64  `json:"total_predictions"`
	CorrectPredictions  uint64  `json:"correct_predictions"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	RMSE                float64 `json:"rmse"`
	LastUpdated         int64   `json:"last_updated"`
}

func (m AccuracyMetrics) View() AccuracyView {
	return AccuracyView{
		TotalPredictions:    m.TotalPredictions,
		CorrectPredictions:  m.CorrectPredictions,
		DirectionalAccuracy: m.DirectionalAccuracy,
		RMSE:                m.RMSE,
		LastUpdated:         m.LastUpdated,
	}
}
