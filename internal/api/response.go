package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "subscription-intake/internal/common/errors"
)

// Error is the error payload returned to clients.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type errorEnvelope struct {
	Error *Error `json:"error"`
}

const (
	ErrInvalidRequest = "invalid_request"
	ErrRateLimited    = "rate_limited"
	ErrInternal       = "internal_error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, details string, retryable bool) {
	writeJSON(w, status, errorEnvelope{Error: &Error{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
	}})
}

// writeStandardError maps a service error onto a status code. Anything that is not a
// *StandardError is reported as an opaque internal error.
func writeStandardError(w http.ResponseWriter, err error) {
	stdErr, ok := apperrors.As(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrInternal, "Something went wrong, please try again", "", true)
		return
	}

	switch stdErr.Code {
	case apperrors.ErrCodeRateLimited:
		if secs, ok := stdErr.Metadata["retryAfterSeconds"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		writeError(w, http.StatusTooManyRequests, ErrRateLimited, stdErr.Message, stdErr.Details, true)
	case apperrors.ErrCodeInvalidInput:
		writeError(w, http.StatusBadRequest, ErrInvalidRequest, stdErr.Message, stdErr.Details, false)
	default:
		writeError(w, http.StatusInternalServerError, ErrInternal, stdErr.Message, "", stdErr.Retryable)
	}
}
