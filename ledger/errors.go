/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All error types in one place for consistency and discoverability.
  The quest engines and the HTTP layer branch on these with errors.Is.

ERROR CATEGORIES:
  1. Not-found errors   - Unknown account
  2. Validation errors  - Bad nickname, bad amount, self transfer
  3. Replay signals     - Duplicate event id (not a failure)
  4. Transient errors   - Storage contention, safe to retry

USAGE:
  if errors.Is(err, ledger.ErrDuplicateEvent) {
      // replay of a known event: return current state, no error
  }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when the referenced nickname has no
	// account. Never retried internally.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account whose
	// nickname is already taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidNickname is returned for nicknames that fail validation.
	ErrInvalidNickname = errors.New("invalid nickname")

	// ErrInvalidAmount is returned for amounts that are not positive
	// whole coins.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidContent is returned for empty or malformed content ids.
	ErrInvalidContent = errors.New("invalid content id")

	// ErrInsufficientFunds is returned when a debit would push a
	// non-admin balance below zero. No state change occurs.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer is returned when sender and receiver are the same
	// account.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrDuplicateEvent is returned by stores when an entry with the
	// same (nickname, event id) already exists. The reward engine treats
	// this as "already cleared", not as a failure.
	ErrDuplicateEvent = errors.New("duplicate event id")

	// ErrConflict is returned on storage contention or timeout. The
	// whole unit of work has been rolled back; callers may retry.
	ErrConflict = errors.New("storage conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how short the sender was.
type InsufficientFundsError struct {
	Nickname  Nickname
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s has %s, requested %s",
		e.Nickname, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidNickname) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidContent) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrAccountExists)
}

// IsNotFound returns true if the error indicates a missing account.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}
