package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/domain/repository"
	"AlphaBot/pkg/cache"
)

const botKeyPrefix = "bot"

// CacheBotStore keeps BotState as JSON in a cache.Service. Records never expire.
type CacheBotStore struct {
	cache cache.Service
}

// NewCacheBotStore creates a BotStore backed by the given cache.
func NewCacheBotStore(c cache.Service) repository.BotStore {
	return &CacheBotStore{cache: c}
}

func botKey(botID string) string {
	return cache.GenerateKey(botKeyPrefix, botID)
}

func (s *CacheBotStore) Create(ctx context.Context, st *models.BotState) error {
	ok, err := s.cache.SetNX(ctx, botKey(st.BotID), st, 0)
	if err != nil {
		return fmt.Errorf("create bot %s: %w", st.BotID, err)
	}
	if !ok {
		return repository.ErrExists
	}
	return nil
}

func (s *CacheBotStore) Load(ctx context.Context, botID string) (*models.BotState, error) {
	var st models.BotState
	if err := s.cache.Get(ctx, botKey(botID), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("load bot %s: %w", botID, err)
	}
	return &st, nil
}

func (s *CacheBotStore) Save(ctx context.Context, st *models.BotState) error {
	if err := s.cache.Set(ctx, botKey(st.BotID), st, 0); err != nil {
		return fmt.Errorf("save bot %s: %w", st.BotID, err)
	}
	return nil
}

func (s *CacheBotStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.cache.Keys(ctx, cache.BuildPattern(botKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, botKeyPrefix+":"))
	}
	return ids, nil
}
