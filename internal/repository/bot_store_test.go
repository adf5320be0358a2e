package repository

import (
	"context"
	"testing"

	"AlphaBot/internal/domain/models"
	"AlphaBot/internal/domain/repository"
	"AlphaBot/pkg/cache"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) repository.BotStore {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return NewCacheBotStore(mc)
}

func TestCacheBotStore_CreateLoadSave(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	st := models.NewBotState("alpha", 1_700_000_000_000)
	require.NoError(t, store.Create(ctx, st))
	assert.ErrorIs(t, store.Create(ctx, st), repository.ErrExists)

	actual := models.MicroFromFloat(2550)
	st.LatestSignal = &models.Signal{
		Timestamp:           10,
		Action:              models.ActionBuy,
		PredictedPriceMicro: models.MicroFromFloat(2600),
		ConfidenceBps:       8000,
		ActualPriceMicro:    &actual,
	}
	st.Accuracy.TotalPredictions = 1
	st.Accuracy.SumSquaredErrors = decimal.RequireFromString("2500")
	st.FollowerCount = 3
	st.Version = 4
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.BotID)
	assert.EqualValues(t, 3, got.FollowerCount)
	assert.EqualValues(t, 4, got.Version)
	require.NotNil(t, got.LatestSignal)
	require.NotNil(t, got.LatestSignal.ActualPriceMicro)
	assert.Equal(t, actual, *got.LatestSignal.ActualPriceMicro)
	assert.True(t, got.Accuracy.SumSquaredErrors.Equal(decimal.NewFromInt(2500)))
}

func TestCacheBotStore_LoadMissing(t *testing.T) {
	_, err := newMemoryStore(t).Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCacheBotStore_List(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, store.Create(ctx, models.NewBotState(id, 1)))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
