package repository

import (
	"context"
	"errors"
	"testing"

	"AlphaBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

type countingPublisher struct {
	n   int
	err error
}

func (p *countingPublisher) Publish(context.Context, *models.BotEvent) error {
	p.n++
	return p.err
}

func (p *countingPublisher) Close() error { return nil }

func TestFanoutPublisher(t *testing.T) {
	ok := &countingPublisher{}
	bad := &countingPublisher{err: errors.New("kafka down")}
	f := NewFanoutPublisher(ok, nil, bad)

	err := f.Publish(context.Background(), &models.BotEvent{BotID: "a"})
	assert.ErrorContains(t, err, "kafka down")
	assert.Equal(t, 1, ok.n)
	assert.Equal(t, 1, bad.n)
	assert.NoError(t, f.Close())
}
