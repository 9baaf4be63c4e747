package service

import "fleetdesk/internal/models"

// legalTransitions is the booking lifecycle state machine. PENDING is the
// initial state; CANCELLED, EXPIRED and CONVERTED are terminal. Transitions
// only move forward, never backward.
var legalTransitions = map[string][]string{
	models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusExpired},
	models.StatusConfirmed: {models.StatusCancelled, models.StatusConverted},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to string) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// checkTransition returns a StateError when the requested transition is not
// legal for the booking's current status.
func checkTransition(current, attempted string) error {
	if CanTransition(current, attempted) {
		return nil
	}
	if attempted == models.StatusConverted {
		return &StateError{
			Current:   current,
			Attempted: attempted,
			Msg:       "booking must be confirmed before it can be converted to a contract",
		}
	}
	return &StateError{Current: current, Attempted: attempted}
}
