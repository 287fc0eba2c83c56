// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Problem codes exposed to API callers.
const (
	CodeValidation   = "VALIDATION"
	CodeInvalidState = "INVALID_STATE"
	CodeUnbalanced   = "UNBALANCED_VOUCHER"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeForbidden    = "FORBIDDEN"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInternal     = "INTERNAL"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unbalanced is checked before invalid state since it is the more specific failure.
func RespondError(w http.ResponseWriter, err error) {
	var verr *shared.ValidationError
	switch {
	case errors.As(err, &verr):
		write(w, ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Code: CodeValidation, Detail: err.Error(), Fields: verr.Fields})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, CodeValidation, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUnbalanced):
		Problem(w, http.StatusUnprocessableEntity, CodeUnbalanced, "Unbalanced Voucher", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusConflict, CodeInvalidState, "Invalid State", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, CodeNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, CodeConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, CodeForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, CodeInternal, "Internal Error", shared.UserSafeMessage(err))
	}
}

// IsServerError reports whether err would be rendered as a 5xx.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	for _, known := range []error{
		shared.ErrValidation, shared.ErrUnbalanced, shared.ErrInvalidState, shared.ErrNotFound,
		shared.ErrConflict, shared.ErrForbidden, shared.ErrUnauthorized,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
