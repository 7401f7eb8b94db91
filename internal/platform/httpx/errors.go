package httpx

import (
	"errors"
	"net/http"

	"github.com/codigix/nobal-casting-sub005/internal/shared"
)

// RespondError maps domain errors to RFC7807 responses. Unrecognized errors
// collapse to a bare 500 so internals never leak to clients.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Already Processed", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, shared.ErrQuantityExceeded):
		Problem(w, http.StatusUnprocessableEntity, "Quantity Exceeded", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed):
		Problem(w, http.StatusConflict, "Period Closed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, "Invalid State", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
