package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Requests accepted by the HTTP API and inside Kafka command payloads.
// Shape checks only; unit conversion and value bounds belong to the prediction package.

type InitBotRequest struct {
	BotID string `json:"bot_id" validate:"required,max=64"`
}

type SubmitPredictionRequest struct {
	Timestamp      int64           `json:"timestamp" validate:"required,gt=0"`
	Action         Action          `json:"action" validate:"required"`
	PredictedPrice decimal.Decimal `json:"predicted_price"`
	Confidence     *float64        `json:"confidence,omitempty" validate:"required_without=ConfidenceBps"`
	ConfidenceBps  *int64          `json:"confidence_bps,omitempty"`
	Reasoning      string          `json:"reasoning"`
}

type ResolveSignalRequest struct {
	Timestamp   int64           `json:"timestamp" validate:"required,gt=0"`
	ActualPrice decimal.Decimal `json:"actual_price"`
}

type HistoryRequest struct {
	From  int64 `query:"from" json:"from" validate:"gte=0"`
	To    int64 `query:"to" json:"to" validate:"gte=0"`
	Limit int   `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// CommandType names a command carried on the commands topic.
type CommandType string

const (
	CmdInitBot          CommandType = "init_bot"
	CmdSubmitPrediction CommandType = "submit_prediction"
	CmdResolveSignal    CommandType = "resolve_signal"
	CmdAddFollower      CommandType = "add_follower"
	CmdRemoveFollower   CommandType = "remove_follower"
)

// Command is the envelope consumed from Kafka. Payload holds one of the request types above.
type Command struct {
	ID      string          `json:"id"`
	BotID   string          `json:"bot_id" validate:"required,max=64"`
	Type    CommandType     `json:"type" validate:"required,oneof=init_bot submit_prediction resolve_signal add_follower remove_follower"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
