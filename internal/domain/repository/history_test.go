package repository

import (
	"testing"

	"AlphaBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(ts int64, ev models.LogEvent, actual *int64) models.SignalLogEntry {
	return models.SignalLogEntry{
		BotID: "a",
		Event: ev,
		Signal: models.Signal{
			Timestamp:        ts,
			Action:           models.ActionHold,
			ActualPriceMicro: actual,
		},
	}
}

func ptr(v int64) *int64 { return &v }

func TestMergeHistory(t *testing.T) {
	entries := []models.SignalLogEntry{
		entry(3, models.LogSubmitted, nil),
		entry(1, models.LogResolved, ptr(10)),
		entry(1, models.LogSubmitted, nil),
		entry(2, models.LogSubmitted, nil),
		entry(1, models.LogResolved, ptr(99)),
	}

	got := MergeHistory(entries, 0, 0, 0)
	require.Len(t, got, 3)
	assert.EqualValues(t, []int64{3, 2, 1}, []int64{got[0].Timestamp, got[1].Timestamp, got[2].Timestamp})
	require.NotNil(t, got[2].ActualPriceMicro)
	assert.EqualValues(t, 10, *got[2].ActualPriceMicro, "first resolution wins")

	got = MergeHistory(entries, 2, 3, 1)
	require.Len(t, got, 1)
	assert.EqualValues(t, 3, got[0].Timestamp)
}

func TestMergeHistoryIgnoresActualOnSubmittedRows(t *testing.T) {
	got := MergeHistory([]models.SignalLogEntry{entry(5, models.LogSubmitted, ptr(7))}, 0, 0, 10)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].ActualPriceMicro)
}
