package repository

import (
	"context"
	"sync"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/domain/repository"
)

// MemorySignalLog keeps the signal history in process memory.
type MemorySignalLog struct {
	mu      sync.RWMutex
	entries map[string][]models.SignalLogEntry
}

// NewMemorySignalLog creates an empty in-memory log.
func NewMemorySignalLog() *MemorySignalLog {
	return &MemorySignalLog{entries: make(map[string][]models.SignalLogEntry)}
}

func (l *MemorySignalLog) Init(context.Context) error { return nil }

func (l *MemorySignalLog) Append(_ context.Context, e *models.SignalLogEntry) error {
	entry := *e
	if e.Signal.ActualPriceMicro != nil {
		v := *e.Signal.ActualPriceMicro
		entry.Signal.ActualPriceMicro = &v
	}
	if e.Correct != nil {
		v := *e.Correct
		entry.Correct = &v
	}

	l.mu.Lock()
	l.entries[e.BotID] = append(l.entries[e.BotID], entry)
	l.mu.Unlock()
	return nil
}

func (l *MemorySignalLog) History(_ context.Context, botID string, from, to int64, limit int) ([]models.Signal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return repository.MergeHistory(l.entries[botID], from, to, limit), nil
}

func (l *MemorySignalLog) Health(context.Context) error { return nil }

func (l *MemorySignalLog) Close() error { return nil }
