// Package reservation owns the lifecycle of parking spaces: the
// state machine driving each space through vacant, reserved and
// occupied, the registry enforcing one active session per plate, and
// the sweeper reclaiming reservations past their deadline.
package reservation

import (
	"errors"
	"fmt"
)

// Validation sentinels.  These are surfaced to the caller as-is and
// never retried internally.  Handlers translate them into HTTP 400
// responses.
var (
	// ErrSpaceNotFound is returned when the space id is unknown.
	ErrSpaceNotFound = errors.New("space not found")
	// ErrNotVacant is returned when a reservation is requested on a
	// space that is already claimed.  A concurrent request losing the
	// post-lock re-check gets the same error: the effect is
	// indistinguishable to the caller.
	ErrNotVacant = errors.New("space not vacant")
	// ErrInvalidDuration is returned for durations below one hour.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrDurationTooLong is returned when the requested duration
	// exceeds the zone maximum.
	ErrDurationTooLong = errors.New("duration exceeds zone maximum")
	// ErrPaymentRequired is returned when a premium zone reservation
	// arrives without a payment reference.
	ErrPaymentRequired = errors.New("payment reference required")
	// ErrNotOwner is returned when an operation names a plate that
	// does not hold the space.
	ErrNotOwner = errors.New("space held by another plate")
	// ErrNotReserved is returned when an operation requires the
	// reserved state (occupy, cancel) and the space is not in it.
	ErrNotReserved = errors.New("space not reserved")
)

// DuplicateSessionError rejects a second concurrent session for the
// same plate.  It carries the space the existing session claims so
// the caller can point the client at it.
type DuplicateSessionError struct {
	Plate   string // plate that already has a session
	SpaceID string // space the existing session claims
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("plate %s already has an active session at space %s", e.Plate, e.SpaceID)
}

// PaymentPendingError means verification could not complete yet.  No
// partial reservation is created; the client should retry shortly.
type PaymentPendingError struct {
	Reason string
}

func (e *PaymentPendingError) Error() string {
	return "payment not yet confirmed: " + e.Reason
}

// PaymentRejectedError is terminal for the submitted payment
// reference and carries the specific reason for diagnostics.
type PaymentRejectedError struct {
	Reason string
}

func (e *PaymentRejectedError) Error() string {
	return "payment rejected: " + e.Reason
}
