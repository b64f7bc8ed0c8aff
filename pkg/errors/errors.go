package errors

import "fmt"

// ErrorType classifies failures so the orchestrator can decide whether a
// work unit is retryable, skippable, or fatal.
type ErrorType string

const (
	ErrorTypeFetch     ErrorType = "fetch"      // network/HTTP failure
	ErrorTypeRateLimit ErrorType = "rate_limit" // throttled by the source
	ErrorTypeParse     ErrorType = "parse"      // unexpected payload shape
	ErrorTypeMerge     ErrorType = "merge"      // store constraint violation
	ErrorTypeConfig    ErrorType = "config"     // invalid configuration, fatal at startup
	ErrorTypeAuth      ErrorType = "auth"       // session rejected by the source
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error represents a classified crawl error.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a classified error without an HTTP code.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable checks if an error type should be retried before the unit is
// skipped. Parse and merge errors are deterministic and never retried.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeFetch, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 429:
		return true
	case 401, 403, 404: // won't change on retry
		return false
	default:
		return statusCode >= 500
	}
}
