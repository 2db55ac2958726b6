package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is wrapped by every lookup miss; handlers map it to 404.
var ErrNotFound = errors.New("not found")

func notFound(entity string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Conflict codes. The UI renders Message directly, Code drives client logic.
const (
	CodeExceedsRemaining      = "EXCEEDS_REMAINING"
	CodeDebtAlreadyPaid       = "DEBT_ALREADY_PAID"
	CodeDebtVoided            = "DEBT_VOIDED"
	CodeAlreadyConfirmed      = "ALREADY_CONFIRMED"
	CodeDraftChanged          = "DRAFT_CHANGED"
	CodeOrderHasPayments      = "ORDER_HAS_PAYMENTS"
	CodeOrderAlreadyCancelled = "ORDER_ALREADY_CANCELLED"
	CodeIdempotencyInFlight   = "IDEMPOTENCY_IN_FLIGHT"

	CodeNonPositiveAmount = "NON_POSITIVE_AMOUNT"
	CodeExcessPrecision   = "EXCESS_PRECISION"
)

// ValidationError is bad or missing input. Recoverable by correcting the request.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError means the request is well-formed but contradicts current state.
// It is never resolved by clamping; the caller re-fetches and retries.
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Code + ": " + e.Message }

func conflict(code, format string, args ...interface{}) *ConflictError {
	return &ConflictError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// DependencyError is an upstream failure detected before anything was written,
// so retrying the same request is safe.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
