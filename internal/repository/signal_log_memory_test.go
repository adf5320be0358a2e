package repository

import (
	"context"
	"testing"

	"AlphaBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logSignal(ts int64) models.Signal {
	return models.Signal{
		Timestamp:           ts,
		Action:              models.ActionBuy,
		PredictedPriceMicro: models.MicroFromFloat(100),
		ConfidenceBps:       5000,
	}
}

func TestMemorySignalLog_HistoryMergesResolution(t *testing.T) {
	ctx := context.Background()
	log := NewMemorySignalLog()

	for _, ts := range []int64{100, 200, 300} {
		require.NoError(t, log.Append(ctx, &models.SignalLogEntry{BotID: "a", Event: models.LogSubmitted, Signal: logSignal(ts)}))
	}
	correct := true
	require.NoError(t, log.Append(ctx, &models.SignalLogEntry{
		BotID:   "a",
		Event:   models.LogResolved,
		Signal:  logSignal(200).Resolved(models.MicroFromFloat(110)),
		Correct: &correct,
	}))
	require.NoError(t, log.Append(ctx, &models.SignalLogEntry{BotID: "b", Event: models.LogSubmitted, Signal: logSignal(150)}))

	got, err := log.History(ctx, "a", 0, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.EqualValues(t, 300, got[0].Timestamp)
	assert.False(t, got[0].IsResolved())
	assert.EqualValues(t, 200, got[1].Timestamp)
	require.True(t, got[1].IsResolved())
	assert.Equal(t, models.MicroFromFloat(110), *got[1].ActualPriceMicro)

	got, err = log.History(ctx, "a", 150, 250, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 200, got[0].Timestamp)

	got, err = log.History(ctx, "a", 0, 0, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemorySignalLog_AppendCopiesPointers(t *testing.T) {
	ctx := context.Background()
	log := NewMemorySignalLog()

	s := logSignal(1).Resolved(5)
	require.NoError(t, log.Append(ctx, &models.SignalLogEntry{BotID: "a", Event: models.LogResolved, Signal: s}))
	*s.ActualPriceMicro = 99

	got, err := log.History(ctx, "a", 0, 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.EqualValues(t, 5, *got[0].ActualPriceMicro)
}
