// Package polls runs multiple-choice polls inside an event.
package polls

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

// MaxOptions bounds the number of choices on one poll.
const MaxOptions = 10

// Store is the persistence polls need.
type Store interface {
	store.EventStore
	store.PollStore
}

// Ledger answers whether a user holds an active registration.
type Ledger interface {
	RequireActive(ctx context.Context, eventID, userID string) error
}

// Service manages polls and answers.
type Service struct {
	store  Store
	ledger Ledger
	feed   notify.Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a poll service.
func NewService(st Store, ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		ledger: ledger,
		feed:   notify.NopFeed{},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetFeed routes updates to live watchers.
func (s *Service) SetFeed(f notify.Feed) {
	if f != nil {
		s.feed = f
	}
}

// CreateInput is the body of a new poll.
type CreateInput struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// Validate requires a question and between two and MaxOptions non-blank options.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Question, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.Options, validation.Required, validation.Length(2, MaxOptions), validation.By(noBlank)),
	)
}

func noBlank(value interface{}) error {
	opts, _ := value.([]string)
	for _, o := range opts {
		if o == "" {
			return errors.New("options must not be blank")
		}
	}
	return nil
}

// Create adds a poll to an event. Managers only.
func (s *Service) Create(ctx context.Context, caller models.Caller, eventID string, in CreateInput) (*models.Poll, error) {
	in.Question = strings.TrimSpace(in.Question)
	opts := make([]string, len(in.Options))
	for i, o := range in.Options {
		opts[i] = strings.TrimSpace(o)
	}
	in.Options = opts
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	p := &models.Poll{
		ID:        uuid.New().String(),
		EventID:   eventID,
		Question:  in.Question,
		Options:   in.Options,
		CreatedBy: caller.UserID,
		CreatedAt: s.now(),
	}
	if err := s.store.CreatePoll(ctx, p); err != nil {
		return nil, store.Classify(err, "event")
	}
	s.feed.Publish(ctx, eventID, notify.LivePollOpened, p)
	return p, nil
}

// managed loads a poll and checks that caller manages its event.
func (s *Service) managed(ctx context.Context, caller models.Caller, pollID string) (*models.Poll, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, store.Classify(err, "poll")
	}
	e, err := s.store.GetEvent(ctx, p.EventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	return p, nil
}

// Close stops a poll from taking answers. Closing twice is harmless.
func (s *Service) Close(ctx context.Context, caller models.Caller, pollID string) (*models.PollSummary, error) {
	p, err := s.managed(ctx, caller, pollID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ClosePoll(ctx, pollID); err != nil {
		return nil, store.Classify(err, "poll")
	}
	p.Closed = true
	sum, err := s.summarize(ctx, p)
	if err != nil {
		return nil, err
	}
	s.feed.Publish(ctx, p.EventID, notify.LivePollClosed, sum)
	return sum, nil
}

// Answer records the caller's choice, replacing any earlier one.
func (s *Service) Answer(ctx context.Context, caller models.Caller, pollID string, option int) (*models.PollAnswer, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, store.Classify(err, "poll")
	}
	if p.Closed {
		return nil, apperr.Conflict(apperr.CodePollClosed, "poll is closed")
	}
	if option < 0 || option >= len(p.Options) {
		return nil, apperr.Validation("option must be between 0 and %d", len(p.Options)-1)
	}
	if err := s.ledger.RequireActive(ctx, p.EventID, caller.UserID); err != nil {
		return nil, err
	}
	a := models.PollAnswer{PollID: pollID, UserID: caller.UserID, Option: option, AnsweredAt: s.now()}
	if err := s.store.AnswerPoll(ctx, a); err != nil {
		return nil, store.Classify(err, "poll")
	}
	if sum, err := s.summarize(ctx, p); err != nil {
		s.logger.Warn("poll results not published", zap.String("poll_id", pollID), zap.Error(err))
	} else {
		s.feed.Publish(ctx, p.EventID, notify.LivePollResults, sum)
	}
	return &a, nil
}

// Summaries counts answers for every poll of an event. The caller has
// already been authorized.
func (s *Service) Summaries(ctx context.Context, eventID string) ([]models.PollSummary, error) {
	list, err := s.store.ListPolls(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	out := make([]models.PollSummary, 0, len(list))
	for i := range list {
		sum, err := s.summarize(ctx, &list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

// List returns the poll summaries of an event for its managers.
func (s *Service) List(ctx context.Context, caller models.Caller, eventID string) ([]models.PollSummary, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	return s.Summaries(ctx, eventID)
}

func (s *Service) summarize(ctx context.Context, p *models.Poll) (*models.PollSummary, error) {
	counts, err := s.store.PollCounts(ctx, p.ID, len(p.Options))
	if err != nil {
		return nil, store.Classify(err, "poll")
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &models.PollSummary{
		PollID:   p.ID,
		Question: p.Question,
		Options:  p.Options,
		Counts:   counts,
		Total:    total,
		Closed:   p.Closed,
	}, nil
}
