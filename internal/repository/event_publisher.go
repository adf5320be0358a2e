package repository

import (
	"context"
	"errors"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/domain/repository"
	pkgkafka "AlphaBot/pkg/kafka"
)

// KafkaEventPublisher writes BotEvents to a topic keyed by bot id.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates the Kafka event sink.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e *models.BotEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.BotID), e)
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaEventPublisher) Close() error { return nil }

// FanoutPublisher delivers each event to every publisher and joins their errors.
type FanoutPublisher struct {
	pubs []repository.EventPublisher
}

// NewFanoutPublisher ignores nil publishers.
func NewFanoutPublisher(pubs ...repository.EventPublisher) *FanoutPublisher {
	f := &FanoutPublisher{}
	for _, p := range pubs {
		if p != nil {
			f.pubs = append(f.pubs, p)
		}
	}
	return f
}

func (f *FanoutPublisher) Publish(ctx context.Context, e *models.BotEvent) error {
	var errs []error
	for _, p := range f.pubs {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *FanoutPublisher) Close() error {
	var errs []error
	for _, p := range f.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
