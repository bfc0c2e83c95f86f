package appointment

import "errors"

// Business rule failures. They are returned to callers as-is (possibly
// wrapped with detail) and never leave partial state behind.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidProvider  = errors.New("appointments can only be created with providers")
	ErrSelfBooking      = errors.New("providers cannot book appointments with themselves")
	ErrPastDate         = errors.New("past dates are not permitted")
	ErrSlotUnavailable  = errors.New("appointment date is not available")
	ErrSlotBeingBooked  = errors.New("slot is currently being booked, please retry")
	ErrNotFound         = errors.New("appointment not found")
	ErrUnauthorized     = errors.New("you do not have permission to cancel this appointment")
	ErrLateCancellation = errors.New("appointments can only be cancelled more than 2 hours in advance")
	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
)
