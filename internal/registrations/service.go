// Package registrations is the registration ledger: it admits users to
// events, cancels and reactivates registrations, and keeps each event's
// registered counter equal to its active registrations.
package registrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/store"
)

// Store is the persistence the ledger needs.
type Store interface {
	store.EventStore
	store.RegistrationStore
}

// Paging bounds ListForUser.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

// Service implements the registration ledger.
type Service struct {
	store  Store
	paging Paging
	feed   notify.Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a registration ledger.
func NewService(st Store, paging Paging, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if paging.DefaultLimit <= 0 {
		paging.DefaultLimit = 10
	}
	if paging.MaxLimit < paging.DefaultLimit {
		paging.MaxLimit = paging.DefaultLimit
	}
	return &Service{
		store:  st,
		paging: paging,
		feed:   notify.NopFeed{},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetFeed routes counter changes to live watchers.
func (s *Service) SetFeed(f notify.Feed) {
	if f != nil {
		s.feed = f
	}
}

// CountUpdate is the live payload for registration counter changes.
type CountUpdate struct {
	RegisteredCount int `json:"registered_count"`
}

func (s *Service) publishCount(ctx context.Context, eventID string, n int) {
	s.feed.Publish(ctx, eventID, notify.LiveRegistrations, CountUpdate{RegisteredCount: n})
}

// Outcome is the result of a successful registration.
type Outcome struct {
	Registration    *models.Registration `json:"registration"`
	Reactivated     bool                 `json:"reactivated"`
	RegisteredCount int                  `json:"registered_count"`
}

// Register admits caller to eventID. Invite-only events need the attendee PIN.
func (s *Service) Register(ctx context.Context, caller models.Caller, eventID, pin string) (*Outcome, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return s.register(ctx, caller, e, pin)
}

// RegisterByCode looks the event up by its code (case-insensitive) and registers.
func (s *Service) RegisterByCode(ctx context.Context, caller models.Caller, code, pin string) (*Outcome, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperr.Validation("event code is required")
	}
	e, err := s.store.GetEventByCode(ctx, code)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return s.register(ctx, caller, e, pin)
}

func (s *Service) register(ctx context.Context, caller models.Caller, e *models.Event, pin string) (*Outcome, error) {
	if caller.UserID == "" {
		return nil, apperr.Validation("user id is required")
	}
	if e.Status == models.EventCancelled || e.Status == models.EventCompleted {
		return nil, apperr.Conflict(apperr.CodeEventClosed, "event is %s", e.Status)
	}
	usedPIN, err := access.CheckRegistrationPIN(e, pin)
	if err != nil {
		return nil, err
	}
	res, err := s.store.Register(ctx, store.RegisterParams{
		EventID: e.ID,
		UserID:  caller.UserID,
		UsedPIN: usedPIN,
		Now:     s.now(),
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	s.checkDrift(e.ID, "register", res.Count)
	s.publishCount(ctx, e.ID, res.Count.After)
	s.logger.Info("registered",
		zap.String("event_id", e.ID),
		zap.String("user_id", caller.UserID),
		zap.Bool("reactivated", res.Reactivated),
		zap.Int("registered_count", res.Count.After),
	)
	return &Outcome{Registration: res.Registration, Reactivated: res.Reactivated, RegisteredCount: res.Count.After}, nil
}

// Cancel flips the caller's registration to cancelled. Only the registrant
// or an admin may cancel; cancelling twice fails NotFound.
func (s *Service) Cancel(ctx context.Context, caller models.Caller, registrationID string) (*models.Registration, error) {
	r, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, store.Classify(err, "registration")
	}
	if !access.CanCancel(r, caller) {
		return nil, apperr.Unauthorized("only the registrant or an admin may cancel this registration")
	}
	res, err := s.store.CancelRegistration(ctx, registrationID, s.now())
	if err != nil {
		return nil, store.Classify(err, "registration")
	}
	s.checkDrift(r.EventID, "cancel", res.Count)
	s.publishCount(ctx, r.EventID, res.Count.After)
	return res.Registration, nil
}

// UserPage is one page of a user's registrations.
type UserPage struct {
	Items []models.UserRegistration
	Total int
	Page  int
	Limit int
}

// ListForUser pages the caller's registrations. status defaults to
// registered; "all" lists every status.
func (s *Service) ListForUser(ctx context.Context, caller models.Caller, status string, page, limit int) (*UserPage, error) {
	var st models.RegistrationStatus
	switch status {
	case "", string(models.RegistrationRegistered):
		st = models.RegistrationRegistered
	case string(models.RegistrationCancelled):
		st = models.RegistrationCancelled
	case "all":
	default:
		return nil, apperr.Validation("status must be registered, cancelled or all")
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.paging.DefaultLimit
	}
	if limit > s.paging.MaxLimit {
		limit = s.paging.MaxLimit
	}
	items, total, err := s.store.ListUserRegistrations(ctx, caller.UserID, st, (page-1)*limit, limit)
	if err != nil {
		return nil, store.Classify(err, "registration")
	}
	return &UserPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// ListForEvent lists an event's registrations for its managers.
func (s *Service) ListForEvent(ctx context.Context, caller models.Caller, eventID string, status models.RegistrationStatus) ([]models.Registration, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	list, err := s.store.ListEventRegistrations(ctx, eventID, status)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return list, nil
}

// Reconcile recomputes the event's registered counter for a manager.
func (s *Service) Reconcile(ctx context.Context, caller models.Caller, eventID string) (store.CountChange, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return store.CountChange{}, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return store.CountChange{}, err
	}
	return s.reconcile(ctx, eventID)
}

// Refresh recomputes the counter before a read. Callers have already
// authorized the read.
func (s *Service) Refresh(ctx context.Context, eventID string) error {
	_, err := s.reconcile(ctx, eventID)
	return err
}

func (s *Service) reconcile(ctx context.Context, eventID string) (store.CountChange, error) {
	c, err := s.store.ReconcileRegisteredCount(ctx, eventID)
	if err != nil {
		return store.CountChange{}, store.Classify(err, "event")
	}
	s.checkDrift(eventID, "reconcile", c)
	if c.Drifted() {
		s.publishCount(ctx, eventID, c.After)
	}
	return c, nil
}

// Recipients returns the user ids holding an active registration.
func (s *Service) Recipients(ctx context.Context, eventID string) ([]string, error) {
	list, err := s.store.ListEventRegistrations(ctx, eventID, models.RegistrationRegistered)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

// RequireActive fails with NOT_REGISTERED unless userID holds a registered
// record for eventID.
func (s *Service) RequireActive(ctx context.Context, eventID, userID string) error {
	r, err := s.store.FindRegistration(ctx, eventID, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Classify(err, "registration")
	}
	if r == nil || r.Status != models.RegistrationRegistered {
		return apperr.Validation("user %s is not registered for this event", userID).WithCode(apperr.CodeNotRegistered)
	}
	return nil
}

// AuthorizeFeed allows managers and active registrants to watch an event live.
func (s *Service) AuthorizeFeed(ctx context.Context, caller models.Caller, eventID string) error {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return store.Classify(err, "event")
	}
	if access.IsManager(e, caller) {
		return nil
	}
	if err := s.RequireActive(ctx, eventID, caller.UserID); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return apperr.Unauthorized("only managers and registrants may watch this event")
		}
		return err
	}
	return nil
}

// checkDrift logs a counter that disagreed with the registration set. The
// store has already written the corrected value.
func (s *Service) checkDrift(eventID, op string, c store.CountChange) {
	if !c.Drifted() {
		return
	}
	err := apperr.InvariantViolation("registered_count drifted from active registrations")
	s.logger.Warn("registered count repaired",
		zap.Error(err),
		zap.String("event_id", eventID),
		zap.String("op", op),
		zap.Int("cached", c.Cached),
		zap.Int("actual", c.Actual),
	)
}
