package apperrors

import "errors"

// Sentinel errors for the workflow layer. Services wrap these with context
// via fmt.Errorf and %w; handlers map them to HTTP status codes.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("service temporarily unavailable")
)
