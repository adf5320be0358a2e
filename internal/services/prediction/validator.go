package prediction

import (
	"unicode/utf8"

	"AlphaBot/internal/domain/models"
)

// Validate checks a candidate signal in isolation. Ordering against stored state is the
// dispatcher's job.
func Validate(s *models.Signal) error {
	if s.ConfidenceBps < 0 || s.ConfidenceBps > models.MaxConfidenceBps {
		return outOfRange("confidence")
	}
	if s.PredictedPriceMicro <= 0 {
		return outOfRange("predicted_price")
	}
	if utf8.RuneCountInString(s.Reasoning) > models.MaxReasoningLen {
		return tooLong("reasoning", models.MaxReasoningLen)
	}
	return nil
}

// ValidateActualPrice checks the observed price given at resolution.
func ValidateActualPrice(micro int64) error {
	if micro <= 0 {
		return outOfRange("actual_price")
	}
	return nil
}

// MaxBotIDLen bounds bot identifiers.
const MaxBotIDLen = 64

// ValidateBotID accepts 1 to 64 characters from [A-Za-z0-9_.-]. The restriction
// keeps ids safe inside cache keys, Kafka keys and URL paths.
func ValidateBotID(id string) error {
	if id == "" {
		return &ValidationError{Kind: KindInvalid, Field: "bot_id"}
	}
	if len(id) > MaxBotIDLen {
		return tooLong("bot_id", MaxBotIDLen)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return &ValidationError{Kind: KindInvalid, Field: "bot_id"}
		}
	}
	return nil
}
