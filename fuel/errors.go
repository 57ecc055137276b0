/*
errors.go - Centralized error types for the fuel core

PURPOSE:
  All validation and lookup errors in one place. Validation errors block an
  action before any state is mutated; nothing here is fatal to the process.

ERROR CATEGORIES:
  1. Validation rejection - bad input from the operator (client errors)
  2. Lookup errors - a referenced record does not exist
  3. Store errors - returned by KV backends, wrapped with %w by callers

Parse failures of persisted data are NOT errors: they degrade to empty logs
(see the logbook package) and unparseable dates are simply out of period.

SEE ALSO:
  - consumption.go, cargo.go: Return these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package fuel

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDistance is returned when a trip distance is missing, zero,
	// negative or not finite. No trip may be created from such input.
	ErrInvalidDistance = errors.New("distance must be a positive number")

	// ErrLoadedWithoutWeight is returned for a loaded trip with no cargo weight.
	ErrLoadedWithoutWeight = errors.New("loaded trip requires a cargo weight")

	// ErrInvalidLoadType is returned for an unknown trip load type.
	ErrInvalidLoadType = errors.New("unknown load type")

	// ErrInvalidAmount is returned when a tank transaction amount is not positive.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrInvalidTank is returned for an unknown tank.
	ErrInvalidTank = errors.New("unknown tank")

	// ErrInvalidTxType is returned for an unknown transaction type.
	ErrInvalidTxType = errors.New("unknown transaction type")

	// ErrInvalidWeight is returned when a cargo weight is not positive.
	ErrInvalidWeight = errors.New("weight must be a positive number")

	// ErrMissingDate is returned when an operation requires a date and has none.
	ErrMissingDate = errors.New("date is required")

	// ErrNoCargo is returned when unloading with nothing on board.
	ErrNoCargo = errors.New("no cargo to unload")

	// ErrUnloadExceedsCargo is returned when an unload asks for more than is loaded.
	ErrUnloadExceedsCargo = errors.New("unload exceeds current cargo weight")

	// ErrNoActiveSession is returned when stopping a refrigeration session
	// that was never started.
	ErrNoActiveSession = errors.New("no active refrigeration session")

	// ErrSessionAlreadyActive is returned when starting a second session.
	ErrSessionAlreadyActive = errors.New("refrigeration session already active")

	// ErrInvalidRates is returned when a consumption rate is not positive.
	ErrInvalidRates = errors.New("consumption rates must be positive")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field alongside the sentinel cause.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// NotFoundError names the log and record ID that could not be found.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid operator input.
func IsClientError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidDistance) ||
		errors.Is(err, ErrLoadedWithoutWeight) ||
		errors.Is(err, ErrInvalidLoadType) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTank) ||
		errors.Is(err, ErrInvalidTxType) ||
		errors.Is(err, ErrInvalidWeight) ||
		errors.Is(err, ErrMissingDate) ||
		errors.Is(err, ErrNoCargo) ||
		errors.Is(err, ErrUnloadExceedsCargo) ||
		errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrSessionAlreadyActive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
