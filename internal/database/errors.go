package database

import "errors"

var (
	// ErrNotFound is returned when a booking, car or customer does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotAvailable is returned when the requested car window overlaps an
	// existing non-terminal reservation.
	ErrNotAvailable = errors.New("car is not available for the requested dates")

	// ErrConcurrentModification is returned when an optimistic version check
	// fails during a status or field update.
	ErrConcurrentModification = errors.New("booking was modified concurrently")
)
