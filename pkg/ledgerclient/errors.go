package ledgerclient

import (
	"errors"
	"fmt"
)

// Typed errors surfaced to callers, mapped from the backend's error
// codes rather than sniffed out of message strings.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrDailyLimitReached   = errors.New("daily usage limit reached")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInternal            = errors.New("internal error")
)

// APIError carries the backend's error payload alongside the typed
// sentinel it maps to.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string

	sentinel error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API error %s (status %d): %s", e.Code, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.sentinel
}

// mapCode resolves a backend error code to its typed sentinel. Unknown
// codes map to ErrInternal so that new backend codes degrade safely.
func mapCode(code string) error {
	switch code {
	case "INSUFFICIENT_CREDITS":
		return ErrInsufficientCredits
	case "DAILY_LIMIT_REACHED":
		return ErrDailyLimitReached
	case "SERVICE_UNAVAILABLE":
		return ErrServiceUnavailable
	case "NOT_FOUND":
		return ErrNotFound
	case "VALIDATION_ERROR", "BAD_REQUEST", "FOREIGN_RESERVATION":
		return ErrValidation
	default:
		return ErrInternal
	}
}
