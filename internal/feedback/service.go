// Package feedback collects post-event ratings from registrants.
package feedback

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// Store is the persistence feedback needs.
type Store interface {
	store.EventStore
	store.FeedbackStore
}

// Ledger answers whether a user holds an active registration.
type Ledger interface {
	RequireActive(ctx context.Context, eventID, userID string) error
}

// Service submits and summarizes feedback.
type Service struct {
	store  Store
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a feedback service.
func NewService(st Store, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, ledger: ledger, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Input is a feedback submission.
type Input struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Validate checks the rating range and comment length.
func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&in.Comment, validation.Length(0, 2000)),
	)
}

// Submit stores the caller's feedback, replacing any earlier entry.
func (s *Service) Submit(ctx context.Context, caller models.Caller, eventID string, in Input) (*models.Feedback, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := s.ledger.RequireActive(ctx, eventID, caller.UserID); err != nil {
		return nil, err
	}
	now := s.now()
	f := &models.Feedback{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UserID:    caller.UserID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertFeedback(ctx, f); err != nil {
		return nil, store.Classify(err, "event")
	}
	return f, nil
}

// Summary returns the count and average rating for a manager.
func (s *Service) Summary(ctx context.Context, caller models.Caller, eventID string) (models.FeedbackSummary, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return models.FeedbackSummary{}, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return models.FeedbackSummary{}, err
	}
	sum, err := s.store.FeedbackSummary(ctx, eventID)
	if err != nil {
		return models.FeedbackSummary{}, store.Classify(err, "event")
	}
	return sum, nil
}
