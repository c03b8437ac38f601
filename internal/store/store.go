// Package store declares the persistence contracts of the event core.
// Implementations live in the memory and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aura-events/backend/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrCodeTaken         = errors.New("event code already taken")
	ErrCapacityExceeded  = errors.New("event capacity reached")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrVersionConflict   = errors.New("event was modified concurrently")
	ErrCapacityTooLow    = errors.New("capacity below active registrations")
)

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	Status      models.EventStatus
	OrganizerID string
	Area        string
	EventType   string
	Offset      int
	Limit       int
}

// EventStore persists Event aggregates.
type EventStore interface {
	// CreateEvent inserts e. It returns ErrCodeTaken if e.Code is in use.
	CreateEvent(ctx context.Context, e *models.Event) error
	EventCodeExists(ctx context.Context, code string) (bool, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetEventByCode(ctx context.Context, code string) (*models.Event, error)
	ListEvents(ctx context.Context, f EventFilter) ([]models.Event, int, error)
	// MutateEvent applies fn to a copy of the stored aggregate and writes the
	// result as one atomic update. Changes fn makes to the registration and
	// attendance counters are discarded; those belong to the ledgers. If fn
	// returns an error nothing is written and that error is returned. A
	// capacity below the active registrations, counted under the same lock
	// that registration writes take, fails with ErrCapacityTooLow.
	MutateEvent(ctx context.Context, id string, fn func(*models.Event) error) (*models.Event, error)
	// DeleteEvent removes the event with its registrations, attendance,
	// feedback and polls.
	DeleteEvent(ctx context.Context, id string) error
	// SetAttendingCount overwrites the attending cache from attendance records.
	SetAttendingCount(ctx context.Context, id string, n int) error
}

// RegisterParams describes one registration attempt.
type RegisterParams struct {
	EventID string
	UserID  string
	UsedPIN bool
	Now     time.Time
}

// CountChange reports the cached counter found under the lock and the value
// written back. They differ only when the cache had drifted.
type CountChange struct {
	Cached int
	Actual int
	After  int
}

// Drifted reports whether the cache disagreed with the registration set.
func (c CountChange) Drifted() bool { return c.Cached != c.Actual }

// RegisterResult is the outcome of a successful Register.
type RegisterResult struct {
	Registration *models.Registration
	Reactivated  bool
	Count        CountChange
}

// CancelResult is the outcome of a successful CancelRegistration.
type CancelResult struct {
	Registration *models.Registration
	Count        CountChange
}

// RegistrationStore owns Registration records and the registered counter.
// Every write serializes on the event and recomputes the counter from the
// registered rows.
type RegistrationStore interface {
	// Register admits p.UserID. The capacity check uses the authoritative count
	// and precedes the duplicate check. It returns ErrNotFound,
	// ErrCapacityExceeded or ErrAlreadyRegistered. A cancelled record for the
	// pair is reactivated in place.
	Register(ctx context.Context, p RegisterParams) (*RegisterResult, error)
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	// FindRegistration returns the record for the (event, user) pair in any status.
	FindRegistration(ctx context.Context, eventID, userID string) (*models.Registration, error)
	// CancelRegistration flips a registered record to cancelled. Missing or
	// already cancelled records give ErrNotFound.
	CancelRegistration(ctx context.Context, id string, now time.Time) (*CancelResult, error)
	// ListUserRegistrations pages a user's registrations joined with their
	// events. Registrations whose event is gone are skipped.
	ListUserRegistrations(ctx context.Context, userID string, status models.RegistrationStatus, offset, limit int) ([]models.UserRegistration, int, error)
	ListEventRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) ([]models.Registration, error)
	CountRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) (int, error)
	// ReconcileRegisteredCount rewrites the counter from the registration set.
	ReconcileRegisteredCount(ctx context.Context, eventID string) (CountChange, error)
}

// AttendanceStore records who showed up.
type AttendanceStore interface {
	// MarkAttended inserts a record and reports whether it was new.
	MarkAttended(ctx context.Context, a models.Attendance) (bool, error)
	ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error)
	CountAttendance(ctx context.Context, eventID string) (int, error)
}

// FeedbackStore keeps one feedback entry per user per event.
type FeedbackStore interface {
	UpsertFeedback(ctx context.Context, f *models.Feedback) error
	FeedbackSummary(ctx context.Context, eventID string) (models.FeedbackSummary, error)
}

// PollStore persists polls and their answers.
type PollStore interface {
	CreatePoll(ctx context.Context, p *models.Poll) error
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	ListPolls(ctx context.Context, eventID string) ([]models.Poll, error)
	ClosePoll(ctx context.Context, id string) error
	// AnswerPoll stores or replaces the user's answer.
	AnswerPoll(ctx context.Context, a models.PollAnswer) error
	// PollCounts returns answers per option index.
	PollCounts(ctx context.Context, pollID string, options int) ([]int, error)
}

// Store is the full persistence surface used by the services.
type Store interface {
	EventStore
	RegistrationStore
	AttendanceStore
	FeedbackStore
	PollStore
}
