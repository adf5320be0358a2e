package prediction

import (
	"strings"
	"testing"

	"AlphaBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSignal() models.Signal {
	return models.Signal{
		Timestamp:           1_000_000,
		Action:              models.ActionBuy,
		PredictedPriceMicro: models.MicroFromFloat(2500.0),
		ConfidenceBps:       7500,
		Reasoning:           "Strong momentum indicators",
	}
}

func TestValidate_Accepts(t *testing.T) {
	s := validSignal()
	assert.NoError(t, Validate(&s))
}

func TestValidate_ConfidenceBounds(t *testing.T) {
	tests := []struct {
		bps     int64
		wantErr bool
	}{
		{bps: -1, wantErr: true},
		{bps: 0},
		{bps: 5000},
		{bps: 10_000},
		{bps: 10_001, wantErr: true},
		{bps: 15_000, wantErr: true},
	}
	for _, tt := range tests {
		s := validSignal()
		s.ConfidenceBps = tt.bps
		err := Validate(&s)
		if !tt.wantErr {
			assert.NoError(t, err, "bps=%d", tt.bps)
			continue
		}
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "bps=%d", tt.bps)
		assert.Equal(t, KindOutOfRange, ve.Kind)
		assert.Equal(t, "confidence", ve.Field)
	}
}

func TestValidate_PredictedPriceMustBePositive(t *testing.T) {
	for _, micro := range []int64{0, -1, models.MicroFromFloat(-100.0)} {
		s := validSignal()
		s.PredictedPriceMicro = micro
		var ve *ValidationError
		require.ErrorAs(t, Validate(&s), &ve)
		assert.Equal(t, "predicted_price", ve.Field)
	}

	s := validSignal()
	s.PredictedPriceMicro = 1
	assert.NoError(t, Validate(&s))
}

func TestValidate_ReasoningLength(t *testing.T) {
	s := validSignal()
	s.Reasoning = strings.Repeat("x", 512)
	assert.NoError(t, Validate(&s))

	// counted in characters, not bytes
	s.Reasoning = strings.Repeat("é", 512)
	assert.NoError(t, Validate(&s))

	s.Reasoning = strings.Repeat("x", 513)
	var ve *ValidationError
	require.ErrorAs(t, Validate(&s), &ve)
	assert.Equal(t, KindTooLong, ve.Kind)
	assert.Equal(t, "reasoning", ve.Field)
	assert.Equal(t, 512, ve.Max)
	assert.True(t, IsRejection(ve))
}

func TestValidateBotID(t *testing.T) {
	for _, id := range []string{"alpha", "bot-1", "eth_usd.v2", strings.Repeat("a", 64)} {
		assert.NoError(t, ValidateBotID(id), id)
	}

	cases := map[string]ValidationKind{
		"":                     KindInvalid,
		"has space":            KindInvalid,
		"bot:1":                KindInvalid,
		"bot*":                 KindInvalid,
		strings.Repeat("a", 65): KindTooLong,
	}
	for id, kind := range cases {
		var ve *ValidationError
		require.ErrorAs(t, ValidateBotID(id), &ve, id)
		assert.Equal(t, kind, ve.Kind, id)
		assert.Equal(t, "bot_id", ve.Field)
	}
}
