package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Action is the direction a signal predicts.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// ParseAction accepts BUY/SELL/HOLD in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	case ActionHold:
		return ActionHold, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// SignalStatus is derived from whether an actual price is attached.
type SignalStatus string

const (
	StatusPending  SignalStatus = "pending"
	StatusResolved SignalStatus = "resolved"
)

const (
	// MicroPerUnit is the fixed-point scale for prices.
	MicroPerUnit = 1_000_000
	// MaxConfidenceBps is confidence 1.0 in basis points.
	MaxConfidenceBps = 10_000
	// MaxReasoningLen is the reasoning limit in characters.
	MaxReasoningLen = 512
)

// Signal is one prediction event. Prices are micro-units, confidence is basis points.
type Signal struct {
	Timestamp           int64  `json:"timestamp"`
	Action              Action `json:"action"`
	PredictedPriceMicro int64  `json:"predicted_price_micro"`
	ConfidenceBps       int64  `json:"confidence_bps"`
	Reasoning           string `json:"reasoning"`
	ActualPriceMicro    *int64 `json:"actual_price_micro,omitempty"`
}

// Status reports Pending until an actual price is attached.
func (s *Signal) Status() SignalStatus {
	if s.ActualPriceMicro == nil {
		return StatusPending
	}
	return StatusResolved
}

func (s *Signal) IsResolved() bool { return s.ActualPriceMicro != nil }

// Resolved returns a copy of s with the actual price attached. s itself is not modified.
func (s Signal) Resolved(actualMicro int64) Signal {
	v := actualMicro
	s.ActualPriceMicro = &v
	return s
}

// Clone returns a deep copy.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	if s.ActualPriceMicro != nil {
		v := *s.ActualPriceMicro
		c.ActualPriceMicro = &v
	}
	return &c
}

var (
	minMicro = decimal.NewFromInt(math.MinInt64)
	maxMicro = decimal.NewFromInt(math.MaxInt64)
)

// MicroFromDecimal converts a price to micro-units, truncating toward zero.
// ok is false when the result does not fit in int64.
func MicroFromDecimal(d decimal.Decimal) (micro int64, ok bool) {
	shifted := d.Shift(6).Truncate(0)
	if shifted.LessThan(minMicro) || shifted.GreaterThan(maxMicro) {
		return 0, false
	}
	return shifted.IntPart(), true
}

// DecimalFromMicro converts micro-units back to a decimal price.
func DecimalFromMicro(micro int64) decimal.Decimal {
	return decimal.New(micro, -6)
}

// MicroFromFloat converts a float price to micro-units. Out-of-range input yields 0.
func MicroFromFloat(f float64) int64 {
	micro, _ := MicroFromDecimal(decimal.NewFromFloat(f))
	return micro
}

// BpsFromProbability converts a probability in [0, 1] to basis points, flooring.
// ok is false outside that interval.
func BpsFromProbability(p float64) (bps int64, ok bool) {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, false
	}
	return decimal.NewFromFloat(p).Shift(4).Floor().IntPart(), true
}

// ProbabilityFromBps converts basis points to a probability.
func ProbabilityFromBps(bps int64) float64 {
	return float64(bps) / MaxConfidenceBps
}
