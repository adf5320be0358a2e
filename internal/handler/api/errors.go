package api

import (
	"errors"
	"net/http"

	"AlphaBot/internal/services/prediction"
	xhttp "AlphaBot/pkg/http"
)

// toAppError maps dispatcher errors onto API errors. Anything unrecognised is a 500.
func toAppError(err error) *xhttp.AppError {
	var ve *prediction.ValidationError
	if errors.As(err, &ve) {
		code := "ERR_OUT_OF_RANGE"
		switch ve.Kind {
		case prediction.KindTooLong:
			code = "ERR_TOO_LONG"
		case prediction.KindInvalid:
			code = "ERR_INVALID"
		}
		appErr := xhttp.FieldError(code, ve.Field, ve.Error()).WithError(err)
		if ve.Max > 0 {
			appErr.WithParam("max", ve.Max)
		}
		return appErr
	}

	var oe *prediction.OrderingError
	if errors.As(err, &oe) {
		return xhttp.ConflictError("ERR_ORDERING", oe.Error()).
			WithParam("previous", oe.Previous).
			WithError(err)
	}

	switch {
	case errors.Is(err, prediction.ErrBotNotFound):
		return xhttp.NotFoundError("bot not found").WithError(err)
	case errors.Is(err, prediction.ErrBotExists):
		return xhttp.ConflictError("ERR_BOT_EXISTS", "bot already exists").WithError(err)
	case errors.Is(err, prediction.ErrAlreadyResolved):
		return xhttp.ConflictError("ERR_ALREADY_RESOLVED", "signal already resolved").WithError(err)
	case errors.Is(err, prediction.ErrResolutionMismatch):
		return xhttp.ConflictError("ERR_RESOLUTION_MISMATCH", "timestamp does not match the pending signal").WithError(err)
	}
	return xhttp.NewAppError("ERR_INTERNAL", "", "Something went wrong", http.StatusInternalServerError).WithError(err)
}
