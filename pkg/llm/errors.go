package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies provider failures for retry decisions and logging.
type ErrorType string

const (
	// ErrorTypeConnection indicates the provider endpoint could not be reached.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout indicates the call exceeded its deadline.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeRateLimit indicates the provider is throttling requests.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeAuth indicates invalid or missing credentials.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeInvalidRequest indicates the request itself was malformed.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeServer indicates a provider-side failure.
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeUnknown is the fallback classification.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error wraps a provider failure with an explicit classification so callers
// don't need to string-match. Implements retry.RetryableError.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether this class of failure is worth retrying.
// Auth failures and malformed requests never recover on retry.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// ClassifyError wraps err in a typed *Error based on its message.
// Already-classified errors pass through unchanged.
func ClassifyError(err error, context string) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	errType := ErrorTypeUnknown

	switch {
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "network is unreachable"):
		errType = ErrorTypeConnection
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "timed out"),
		strings.Contains(errStr, "deadline exceeded"):
		errType = ErrorTypeTimeout
	case strings.Contains(errStr, "429"),
		strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "too many requests"):
		errType = ErrorTypeRateLimit
	case strings.Contains(errStr, "401"),
		strings.Contains(errStr, "403"),
		strings.Contains(errStr, "unauthorized"),
		strings.Contains(errStr, "invalid api key"):
		errType = ErrorTypeAuth
	case strings.Contains(errStr, "400"),
		strings.Contains(errStr, "invalid request"),
		strings.Contains(errStr, "context length"):
		errType = ErrorTypeInvalidRequest
	case strings.Contains(errStr, "500"),
		strings.Contains(errStr, "502"),
		strings.Contains(errStr, "503"),
		strings.Contains(errStr, "504"),
		strings.Contains(errStr, "internal server error"),
		strings.Contains(errStr, "service unavailable"):
		errType = ErrorTypeServer
	}

	return &Error{
		Type:    errType,
		Message: context,
		Err:     err,
	}
}
