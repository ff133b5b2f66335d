package ledger

import "errors"

var (
	// ErrInsufficientCredits is returned when the wallet cannot cover a
	// reservation. Expected outcome, never logged as a fault.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDailyLimitReached is returned when the user already completed
	// the configured number of estimates in the current UTC day.
	ErrDailyLimitReached = errors.New("daily limit reached")

	// ErrServiceUnavailable is returned while maintenance mode is on or
	// the AI capability is disabled.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrUserNotFound is returned on read-only calls for unknown devices.
	ErrUserNotFound = errors.New("user not found")

	// ErrReservationNotFound is returned when a finalize/rollback names
	// a request id that does not exist or is already terminal.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrForeignReservation is returned when a finalize/rollback names a
	// reservation owned by a different device. Authorization fault,
	// always rejected, never silently accepted.
	ErrForeignReservation = errors.New("reservation owned by another device")

	// ErrReferenceConflict is returned when a grant reuses a reference id
	// with a different amount.
	ErrReferenceConflict = errors.New("reference conflicts with different amount")

	ErrInternal = errors.New("internal error")
)
