// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// Code is a stable machine-readable reason (e.g. EXCEEDS_REMAINING); Detail is
// rendered verbatim to the cashier.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Code: "VALIDATION_ERROR", Fields: fields}
}

// NewFieldValidation is the single-field form returned by service-level checks.
func NewFieldValidation(field, msg string) *ValidationError {
	return &ValidationError{Detail: msg, Code: "VALIDATION_ERROR", Fields: map[string]string{field: msg}}
}
