package repository

import (
	"context"

	"AlphaBot/internal/domain/models"
)

// BotStore persists whole BotState records. Save replaces the record.
type BotStore interface {
	Create(ctx context.Context, st *models.BotState) error
	Load(ctx context.Context, botID string) (*models.BotState, error)
	Save(ctx context.Context, st *models.BotState) error
	List(ctx context.Context) ([]string, error)
}

// SignalLog is the append-only history of every submitted and resolved signal.
type SignalLog interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, e *models.SignalLogEntry) error
	// History returns signals with timestamps in [from, to] (to=0 means open), newest first,
	// each carrying its actual price if it was resolved.
	History(ctx context.Context, botID string, from, to int64, limit int) ([]models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher fans out BotEvents to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, e *models.BotEvent) error
	Close() error
}

// Locker serialises work on one key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Metrics interface {
	RecordCommand(cmd, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordAccuracy(botID string, m models.AccuracyMetrics)
	RecordFollowers(botID string, n uint64)
}
