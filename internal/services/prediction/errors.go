package prediction

import (
	"errors"
	"fmt"
)

var (
	ErrBotNotFound        = errors.New("bot not found")
	ErrBotExists          = errors.New("bot already exists")
	ErrAlreadyResolved    = errors.New("signal already resolved")
	ErrResolutionMismatch = errors.New("resolve timestamp does not match pending signal")
)

// ValidationKind classifies a rejected field.
type ValidationKind string

const (
	KindOutOfRange ValidationKind = "out_of_range"
	KindTooLong    ValidationKind = "too_long"
	KindInvalid    ValidationKind = "invalid"
)

// ValidationError rejects a candidate because of a single field.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Max   int
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindTooLong:
		return fmt.Sprintf("%s too long (max %d)", e.Field, e.Max)
	case KindInvalid:
		return fmt.Sprintf("%s invalid", e.Field)
	default:
		return fmt.Sprintf("%s out of range", e.Field)
	}
}

func outOfRange(field string) *ValidationError {
	return &ValidationError{Kind: KindOutOfRange, Field: field}
}

func tooLong(field string, max int) *ValidationError {
	return &ValidationError{Kind: KindTooLong, Field: field, Max: max}
}

// OrderingError rejects a submit whose timestamp does not advance past the stored one.
type OrderingError struct {
	Timestamp int64
	Previous  int64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("signal timestamp %d must be greater than previous %d", e.Timestamp, e.Previous)
}

// IsRejection reports whether err is a command rejection rather than an infrastructure failure.
// Rejections leave state untouched and retrying them cannot succeed.
func IsRejection(err error) bool {
	var ve *ValidationError
	var oe *OrderingError
	return errors.As(err, &ve) ||
		errors.As(err, &oe) ||
		errors.Is(err, ErrBotNotFound) ||
		errors.Is(err, ErrBotExists) ||
		errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrResolutionMismatch)
}
