package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound         = errors.New("resource not found")
	ErrDuplicate        = errors.New("resource already exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrInternalServer   = errors.New("internal server error")
	ErrStoreUnavailable = errors.New("data store unavailable")

	// ErrServerMisconfigured is returned when mandatory server configuration
	// (the token signing secret) is absent at the point of use.
	ErrServerMisconfigured = errors.New("server misconfigured")

	// Account state errors
	ErrAccountLocked = errors.New("account is temporarily locked")

	// Token errors, distinguishable by the auth middleware's callers
	ErrTokenMissing = errors.New("missing authentication token")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// Booking invariant violations. The messages are part of the API contract,
// clients match on them.
var (
	ErrInvalidTrainer       = errors.New("trainer not found or not able to receive bookings")
	ErrPastBooking          = errors.New("appointments must be booked for a future date and time")
	ErrNotOnTheHour         = errors.New("appointments must start on the hour")
	ErrOutsideBookingWindow = errors.New("appointments are only available between 05:00 and 13:00")
	ErrClientAlreadyBooked  = errors.New("clients are limited to one appointment per day")
	ErrSlotFull             = errors.New("this time slot is fully booked")
	ErrInvalidTransition    = errors.New("invalid appointment status transition")
)
