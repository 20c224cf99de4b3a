package agenda

import (
	"errors"
	"fmt"
)

// Expected outcomes of scheduling operations. These surface to the caller
// with structured detail; none of them indicate a system fault.
var (
	ErrNotFound               = errors.New("booking not found")
	ErrValidation             = errors.New("validation failed")
	ErrEntityNotFound         = errors.New("referenced entity not found")
	ErrEntityInactive         = errors.New("referenced entity is inactive")
	ErrBlockedBySchedule      = errors.New("range is blocked by a schedule block")
	ErrTransitionNotAllowed   = errors.New("transition not allowed")
	ErrStateTerminal          = errors.New("booking is in a terminal state")
	ErrNotCancellable         = errors.New("booking is not cancellable")
	ErrNotReschedulable       = errors.New("booking is not reschedulable")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)

// ConflictError carries the conflicting bookings found by the detector so a
// client can render a precise message.
type ConflictError struct {
	Report *ConflictReport
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overlap detected: %d conflicting booking(s)", e.Report.Len())
}

// validationError wraps ErrValidation with a field-level message.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
