// Package repository defines error types that are reused across
// multiple repositories.  These sentinel values let higher layers
// such as the reservation engine distinguish between failure
// scenarios without depending on driver error codes.
package repository

import "errors"

// ErrPaymentConsumed is returned when a ledger transaction hash has
// already unlocked a reservation.  The consumed_payments table has a
// unique key on the hash, so the INSERT itself is the atomic replay
// check.
var ErrPaymentConsumed = errors.New("payment already consumed")

// ErrSessionNotFound is returned when a session row does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSpaceNotFound is returned when a space row does not exist.
var ErrSpaceNotFound = errors.New("space not found")
