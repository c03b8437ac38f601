// Package events is the event store service: it creates, reads, updates and
// deletes Event aggregates and manages collaborators and permissions.
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/store"
)

// Ledger is the part of the registration ledger event reads and
// notifications rely on.
type Ledger interface {
	Refresh(ctx context.Context, eventID string) error
	Recipients(ctx context.Context, eventID string) ([]string, error)
}

var errMediaDisabled = errors.New("no media bucket configured")

// Service implements event operations.
type Service struct {
	events   store.EventStore
	ledger   Ledger
	notifier notify.Notifier
	media    Presigner
	codes    *CodeGenerator
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an event service. media may be nil when uploads are
// not configured.
func NewService(events store.EventStore, ledger Ledger, notifier notify.Notifier, media Presigner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger)
	}
	return &Service{
		events:   events,
		ledger:   ledger,
		notifier: notifier,
		media:    media,
		codes:    NewCodeGenerator(events.EventCodeExists),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput carries the fields of a new event.
type CreateInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Venue       string            `json:"venue"`
	EventType   string            `json:"event_type"`
	Area        string            `json:"area"`
	Image       string            `json:"image"`
	MP4Video    string            `json:"mp4_video"`
	M4Audio     string            `json:"m4_audio"`
	AccessType  models.AccessType `json:"access_type"`
	Capacity    *int              `json:"capacity"`
	Budget      *float64          `json:"budget"`
}

func (in *CreateInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Time = strings.TrimSpace(in.Time)
	in.Venue = strings.TrimSpace(in.Venue)
	in.EventType = strings.TrimSpace(in.EventType)
	in.Area = strings.TrimSpace(in.Area)
	if in.AccessType == "" {
		in.AccessType = models.AccessOpen
	}
}

// positiveCapacity rejects a present capacity below one. Min alone skips
// zero values.
func positiveCapacity(value interface{}) error {
	if p, ok := value.(*int); ok && p != nil && *p < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

// Validate checks required fields and ranges.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Date, validation.Required, validation.Date(models.DateLayout)),
		validation.Field(&in.Time, validation.Required),
		validation.Field(&in.Venue, validation.Required),
		validation.Field(&in.EventType, validation.Required),
		validation.Field(&in.Area, validation.Required),
		validation.Field(&in.AccessType, validation.In(models.AccessOpen, models.AccessInviteOnly)),
		validation.Field(&in.Capacity, validation.By(positiveCapacity)),
		validation.Field(&in.Budget, validation.Min(0.0)),
	)
}

// CreateEvent creates an event owned by caller with a fresh code and PINs.
func (s *Service) CreateEvent(ctx context.Context, caller models.Caller, in CreateInput) (*models.Event, error) {
	if err := access.RequireCreator(caller); err != nil {
		return nil, err
	}
	in.normalize()
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	date, _ := time.Parse(models.DateLayout, in.Date)

	capacity := models.DefaultCapacity
	if in.Capacity != nil {
		capacity = *in.Capacity
	}
	var total float64
	if in.Budget != nil {
		total = *in.Budget
	}
	now := s.now()
	e := &models.Event{
		ID:           uuid.New().String(),
		OrganizerID:  caller.UserID,
		Title:        in.Title,
		Description:  in.Description,
		Date:         date,
		Time:         in.Time,
		Venue:        in.Venue,
		EventType:    in.EventType,
		Area:         in.Area,
		Image:        in.Image,
		MP4Video:     in.MP4Video,
		M4Audio:      in.M4Audio,
		AccessType:   in.AccessType,
		OrganizerPIN: s.codes.PIN(),
		AttendeePIN:  s.codes.PIN(),
		Capacity:     capacity,
		Budget:       models.Budget{Total: total},
		Status:       models.EventUpcoming,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.Normalize()

	// The exists check narrows collisions; the unique index settles races.
	for attempt := 0; ; attempt++ {
		code, err := s.codes.EventCode(ctx)
		if err != nil {
			return nil, apperr.Internal(err, "generate event code")
		}
		e.Code = code
		err = s.events.CreateEvent(ctx, e)
		if errors.Is(err, store.ErrCodeTaken) && attempt < s.codes.maxAttempts {
			continue
		}
		if err != nil {
			return nil, store.Classify(err, "event")
		}
		break
	}
	s.logger.Info("event created", zap.String("event_id", e.ID), zap.String("event_code", e.Code), zap.String("organizer_id", e.OrganizerID))
	return e, nil
}

// GetEvent returns an event after refreshing its registered counter. PINs
// are shown only to the organizer and collaborators.
func (s *Service) GetEvent(ctx context.Context, caller models.Caller, id string) (*models.Event, error) {
	if err := s.ledger.Refresh(ctx, id); err != nil {
		return nil, err
	}
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return access.RedactFor(e, caller.UserID), nil
}

// GetEventByCode looks an event up by its code, uppercased, and reads it
// like GetEvent.
func (s *Service) GetEventByCode(ctx context.Context, caller models.Caller, code string) (*models.Event, error) {
	e, err := s.events.GetEventByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return s.GetEvent(ctx, caller, e.ID)
}

// ListEvents lists events matching f with PINs redacted per event. Counters
// are returned as stored; single-event reads repair them.
func (s *Service) ListEvents(ctx context.Context, caller models.Caller, f store.EventFilter) ([]models.Event, int, error) {
	list, total, err := s.events.ListEvents(ctx, f)
	if err != nil {
		return nil, 0, store.Classify(err, "event")
	}
	for i := range list {
		list[i] = *access.RedactFor(&list[i], caller.UserID)
	}
	return list, total, nil
}

// UpdateInput is a partial patch; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Date        *string             `json:"date"`
	Time        *string             `json:"time"`
	Venue       *string             `json:"venue"`
	EventType   *string             `json:"event_type"`
	Area        *string             `json:"area"`
	Image       *string             `json:"image"`
	MP4Video    *string             `json:"mp4_video"`
	M4Audio     *string             `json:"m4_audio"`
	AccessType  *models.AccessType  `json:"access_type"`
	Capacity    *int                `json:"capacity"`
	Status      *models.EventStatus `json:"status"`
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

// Validate checks the fields present in the patch.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&in.Venue, validation.NilOrNotEmpty),
		validation.Field(&in.Time, validation.NilOrNotEmpty),
		validation.Field(&in.EventType, validation.NilOrNotEmpty),
		validation.Field(&in.Area, validation.NilOrNotEmpty),
		validation.Field(&in.Date, validation.NilOrNotEmpty, validation.Date(models.DateLayout)),
		validation.Field(&in.AccessType, validation.In(models.AccessOpen, models.AccessInviteOnly)),
		validation.Field(&in.Capacity, validation.By(positiveCapacity)),
		validation.Field(&in.Status, validation.In(models.EventUpcoming, models.EventOngoing, models.EventCompleted, models.EventCancelled)),
	)
}

// UpdateEvent applies a partial patch. Only the organizer or an admin may
// update. Registrants are notified of cancellation and of date, time or
// venue changes.
func (s *Service) UpdateEvent(ctx context.Context, caller models.Caller, id string, in UpdateInput) (*models.Event, error) {
	in.Title, in.Venue, in.Date, in.Time = trimmed(in.Title), trimmed(in.Venue), trimmed(in.Date), trimmed(in.Time)
	in.EventType, in.Area = trimmed(in.EventType), trimmed(in.Area)
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}

	var before models.Event
	updated, err := s.events.MutateEvent(ctx, id, func(e *models.Event) error {
		if err := access.RequireEditor(e, caller); err != nil {
			return err
		}
		before = *e
		applyPatch(e, in)
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}

	if n, ok := changeNotice(&before, updated); ok {
		s.notifyRegistrants(ctx, n)
	}
	return access.RedactFor(updated, caller.UserID), nil
}

func applyPatch(e *models.Event, in UpdateInput) {
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date, _ = time.Parse(models.DateLayout, *in.Date)
	}
	if in.Time != nil {
		e.Time = *in.Time
	}
	if in.Venue != nil {
		e.Venue = *in.Venue
	}
	if in.EventType != nil {
		e.EventType = *in.EventType
	}
	if in.Area != nil {
		e.Area = *in.Area
	}
	if in.Image != nil {
		e.Image = *in.Image
	}
	if in.MP4Video != nil {
		e.MP4Video = *in.MP4Video
	}
	if in.M4Audio != nil {
		e.M4Audio = *in.M4Audio
	}
	if in.AccessType != nil {
		e.AccessType = *in.AccessType
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
}

// changeNotice decides whether an update concerns registrants.
func changeNotice(before, after *models.Event) (models.Notification, bool) {
	n := models.Notification{EventID: after.ID}
	switch {
	case before.Status != models.EventCancelled && after.Status == models.EventCancelled:
		n.Kind = models.NotifyEventCancelled
		n.Subject = "Event cancelled: " + after.Title
		n.Message = after.Title + " on " + after.Date.Format(models.DateLayout) + " has been cancelled."
		return n, true
	case !before.Date.Equal(after.Date) || before.Time != after.Time || before.Venue != after.Venue:
		n.Kind = models.NotifyEventUpdated
		n.Subject = "Event updated: " + after.Title
		n.Message = after.Title + " now takes place on " + after.Date.Format(models.DateLayout) + " at " + after.Time + ", " + after.Venue + "."
		return n, true
	}
	return n, false
}

// DeleteEvent removes the event and all its registrations. Registrants are
// told the event is cancelled.
func (s *Service) DeleteEvent(ctx context.Context, caller models.Caller, id string) error {
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return store.Classify(err, "event")
	}
	if err := access.RequireEditor(e, caller); err != nil {
		return err
	}
	recipients, err := s.ledger.Recipients(ctx, id)
	if err != nil {
		return err
	}
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return store.Classify(err, "event")
	}
	s.logger.Info("event deleted", zap.String("event_id", id), zap.Int("registrations", len(recipients)))
	s.removeMedia(ctx, e)
	if len(recipients) > 0 {
		s.send(ctx, models.Notification{
			EventID:    id,
			Kind:       models.NotifyEventCancelled,
			Subject:    "Event cancelled: " + e.Title,
			Message:    e.Title + " has been cancelled by the organizer.",
			Recipients: recipients,
		})
	}
	return nil
}

// AddCollaborator grants userID management rights. Organizer only.
func (s *Service) AddCollaborator(ctx context.Context, caller models.Caller, eventID, userID string) (*models.Event, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	updated, err := s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		if err := access.RequireOrganizer(e, caller); err != nil {
			return err
		}
		if access.IsOrganizer(e, userID) {
			return apperr.Validation("the organizer cannot be added as a collaborator")
		}
		if access.IsCollaborator(e, userID) {
			return apperr.Conflict(apperr.CodeAlreadyCollaborator, "user is already a collaborator")
		}
		e.Collaborators = append(e.Collaborators, models.Collaborator{UserID: userID, AddedAt: s.now()})
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return updated, nil
}

// GrantAccess sets userID's permission, replacing any earlier grant.
// Organizer or admin only.
func (s *Service) GrantAccess(ctx context.Context, caller models.Caller, eventID, userID string, perm models.Permission) (*models.Event, error) {
	userID = strings.TrimSpace(userID)
	err := validation.Errors{
		"user_id":    validation.Validate(userID, validation.Required),
		"permission": validation.Validate(perm, validation.Required, validation.In(models.PermissionView, models.PermissionEdit, models.PermissionManage)),
	}.Filter()
	if err := apperr.FromValidation(err); err != nil {
		return nil, err
	}
	updated, err := s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		if err := access.RequireEditor(e, caller); err != nil {
			return err
		}
		grant := models.AccessPermission{UserID: userID, Permission: perm, GrantedAt: s.now()}
		for i := range e.AccessPermissions {
			if e.AccessPermissions[i].UserID == userID {
				e.AccessPermissions[i] = grant
				return nil
			}
		}
		e.AccessPermissions = append(e.AccessPermissions, grant)
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return access.RedactFor(updated, caller.UserID), nil
}

// NotifyRegistrants sends an announcement to everyone registered. It
// returns the number of recipients.
func (s *Service) NotifyRegistrants(ctx context.Context, caller models.Caller, eventID, subject, message string) (int, error) {
	subject, message = strings.TrimSpace(subject), strings.TrimSpace(message)
	err := validation.Errors{
		"subject": validation.Validate(subject, validation.Required, validation.Length(1, 200)),
		"message": validation.Validate(message, validation.Required),
	}.Filter()
	if err := apperr.FromValidation(err); err != nil {
		return 0, err
	}
	e, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return 0, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return 0, err
	}
	n := models.Notification{EventID: eventID, Kind: models.NotifyAnnouncement, Subject: subject, Message: message}
	recipients, err := s.ledger.Recipients(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}
	n.Recipients = recipients
	if err := s.notifier.Notify(ctx, n); err != nil {
		return 0, apperr.Internal(err, "enqueue notification")
	}
	return len(recipients), nil
}

// notifyRegistrants resolves recipients and sends n. Failures are logged;
// the update that triggered them has already been committed.
func (s *Service) notifyRegistrants(ctx context.Context, n models.Notification) {
	recipients, err := s.ledger.Recipients(ctx, n.EventID)
	if err != nil {
		s.logger.Warn("resolve notification recipients", zap.Error(err), zap.String("event_id", n.EventID))
		return
	}
	if len(recipients) == 0 {
		return
	}
	n.Recipients = recipients
	s.send(ctx, n)
}

func (s *Service) send(ctx context.Context, n models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification not sent", zap.Error(err), zap.String("event_id", n.EventID), zap.String("kind", n.Kind))
	}
}
