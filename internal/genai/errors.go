package genai

import (
	"errors"
	"fmt"

	apperrors "subscription-intake/internal/common/errors"
)

// Category classifies a generation failure.
type Category string

const (
	CategoryCredentialMissing Category = "credential-missing"
	CategoryRequestFailed     Category = "request-failed"
	CategoryTimeout           Category = "timeout"
	CategoryEmptyOutput       Category = "empty-output"
	CategoryMalformedOutput   Category = "malformed-output"
	CategorySchemaViolation   Category = "schema-violation"
)

// Error is a failed generation call. Status is the HTTP status for request-failed errors.
type Error struct {
	Op       string
	Category Category
	Status   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("genai %s: %s", e.Op, e.Category)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryTimeout, CategoryMalformedOutput:
		return true
	case CategoryRequestFailed:
		return e.Status == 429 || e.Status >= 500 || e.Status == 0
	default:
		return false
	}
}

// CategoryOf returns the category of a generation error, or "" for other errors.
func CategoryOf(err error) Category {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Category
	}
	return ""
}

func newError(op string, cat Category, status int, err error) *Error {
	return &Error{Op: op, Category: cat, Status: status, Err: err}
}

// Standard maps a generation failure onto the shared error codes. Failures that are not about
// timing or credentials go through fallback.
func Standard(op string, err error, fallback func(error) *apperrors.StandardError) *apperrors.StandardError {
	if stdErr, ok := apperrors.As(err); ok {
		return stdErr
	}
	switch CategoryOf(err) {
	case CategoryTimeout:
		return apperrors.NewGenerationTimeoutError(op)
	case CategoryCredentialMissing:
		return apperrors.NewCredentialMissingError("genai")
	}
	return fallback(err)
}
