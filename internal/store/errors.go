package store

import (
	"errors"

	"github.com/aura-events/backend/internal/apperr"
)

// Classify turns a storage error into a typed application error. entity
// names the missing thing in NotFound messages. Errors that are already
// classified pass through.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("%s not found", entity)
	case errors.Is(err, ErrCapacityExceeded):
		return apperr.Conflict(apperr.CodeCapacityExceeded, "event has reached its capacity")
	case errors.Is(err, ErrCapacityTooLow):
		return apperr.Conflict(apperr.CodeCapacityTooLow, "capacity is below the current registrations")
	case errors.Is(err, ErrAlreadyRegistered):
		return apperr.Conflict(apperr.CodeAlreadyRegistered, "already registered for this event")
	default:
		return apperr.Internal(err, "storage failure")
	}
}
