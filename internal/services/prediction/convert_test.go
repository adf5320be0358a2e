package prediction

import (
	"encoding/json"
	"testing"

	"AlphaBot/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSubmit(t *testing.T, body string) *models.SubmitPredictionRequest {
	t.Helper()
	req := &models.SubmitPredictionRequest{}
	require.NoError(t, json.Unmarshal([]byte(body), req))
	return req
}

func TestCandidateFromRequest_Converts(t *testing.T) {
	req := decodeSubmit(t, `{"timestamp":1000,"action":"buy","predicted_price":"2600.1234567","confidence":0.85,"reasoning":"breakout"}`)
	s, err := CandidateFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(2_600_123_456), s.PredictedPriceMicro)
	assert.Equal(t, int64(8500), s.ConfidenceBps)
	assert.Equal(t, models.ActionBuy, s.Action)
	assert.NoError(t, Validate(&s))

	req = decodeSubmit(t, `{"timestamp":1000,"action":"sell","predicted_price":1,"confidence":1,"confidence_bps":1234}`)
	s, err = CandidateFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), s.ConfidenceBps, "confidence_bps wins")
}

func TestCandidateFromRequest_RejectsUnrepresentable(t *testing.T) {
	tests := map[string]struct {
		body  string
		field string
	}{
		"confidence just above one": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":10,"confidence":1.00005}`,
			field: "confidence",
		},
		"huge confidence": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":10,"confidence":1e15}`,
			field: "confidence",
		},
		"wrapping huge confidence": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":10,"confidence":1844674407370955.1616}`,
			field: "confidence",
		},
		"negative confidence": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":10,"confidence":-0.01}`,
			field: "confidence",
		},
		"price past int64 micro-units": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":"18446744073709.551617","confidence":0.5}`,
			field: "predicted_price",
		},
		"huge price": {
			body:  `{"timestamp":1,"action":"buy","predicted_price":1e15,"confidence":0.5}`,
			field: "predicted_price",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := CandidateFromRequest(decodeSubmit(t, tt.body))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, KindOutOfRange, ve.Kind)
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsRejection(err))
		})
	}
}

func TestActualPriceFromRequest(t *testing.T) {
	for _, raw := range []string{`"18446744073709.552616"`, `"18446744073709.551617"`, `1e15`} {
		req := &models.ResolveSignalRequest{}
		require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1,"actual_price":`+raw+`}`), req))
		_, err := ActualPriceFromRequest(req)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, raw)
		assert.Equal(t, "actual_price", ve.Field)
	}

	req := &models.ResolveSignalRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1,"actual_price":"9223372036854.775807"}`), req))
	micro, err := ActualPriceFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), micro, "largest representable price")
}
