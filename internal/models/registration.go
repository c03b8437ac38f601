package models

import (
	"time"
)

// RegistrationStatus is the state of a user's registration for an event.
type RegistrationStatus string

const (
	RegistrationRegistered RegistrationStatus = "registered"
	RegistrationCancelled  RegistrationStatus = "cancelled"
)

// Registration binds a user to an event. There is at most one record per
// (event, user) pair; cancelling flips the status and registering again
// reactivates the same record.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	UserID       string             `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	UsedPIN      bool               `json:"used_pin"`
	RegisteredAt time.Time          `json:"registered_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// UserRegistration is a registration with the summary of its event.
type UserRegistration struct {
	Registration
	Event EventSummary `json:"event"`
}
