package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"AlphaBot/internal/domain/models"
	drepo "AlphaBot/internal/domain/repository"
	"AlphaBot/internal/services/prediction"
	xhttp "AlphaBot/pkg/http"
	pkgkafka "AlphaBot/pkg/kafka"
	applogger "AlphaBot/pkg/logger"
)

// KafkaCommandsHandler consumes command envelopes and applies them through the dispatcher.
// Undecodable messages and command rejections are permanent: they go to the DLQ without retry.
type KafkaCommandsHandler struct {
	topic      string
	dispatcher *BotDispatcher
	metrics    drepo.Metrics
	logger     *applogger.Logger
}

func NewKafkaCommandsHandler(topic string, dispatcher *BotDispatcher, metrics drepo.Metrics, logger *applogger.Logger) *KafkaCommandsHandler {
	return &KafkaCommandsHandler{topic: topic, dispatcher: dispatcher, metrics: metrics, logger: logger}
}

func (h *KafkaCommandsHandler) Topic() string { return h.topic }

// incoming message schema: {id, bot_id, type, payload}
func (h *KafkaCommandsHandler) Handle(ctx context.Context, b []byte) error {
	var cmd models.Command
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode command: %w", err))
	}
	if err := xhttp.Validate(ctx, &cmd); err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(fmt.Errorf("command %s: %w", cmd.ID, err))
	}

	decode := func(v interface{}) error {
		if len(cmd.Payload) == 0 {
			return pkgkafka.Permanent(fmt.Errorf("command %s: empty payload", cmd.ID))
		}
		if err := json.Unmarshal(cmd.Payload, v); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("command %s payload: %w", cmd.ID, err))
		}
		if err := xhttp.Validate(ctx, v); err != nil {
			return pkgkafka.Permanent(fmt.Errorf("command %s payload: %w", cmd.ID, err))
		}
		return nil
	}

	err := h.dispatcher.Apply(ctx, &cmd, decode)
	switch {
	case err == nil:
		return nil
	case pkgkafka.IsPermanent(err):
		h.metrics.RecordError("consumer_payload")
		return err
	case prediction.IsRejection(err):
		h.logger.Info("command rejected",
			applogger.String("id", cmd.ID),
			applogger.String("bot_id", cmd.BotID),
			applogger.String("type", string(cmd.Type)),
			applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
			applogger.Error(err),
		)
		return pkgkafka.Permanent(err)
	default:
		return err
	}
}

var _ pkgkafka.MessageHandler = (*KafkaCommandsHandler)(nil)
