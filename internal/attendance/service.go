// Package attendance records which registrants showed up and keeps the
// event's attending counter in step with those records.
package attendance

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notify"
	"github.com/aura-events/backend/internal/store"
)

// Store is the persistence attendance needs.
type Store interface {
	store.EventStore
	store.AttendanceStore
}

// Ledger answers whether a user holds an active registration.
type Ledger interface {
	RequireActive(ctx context.Context, eventID, userID string) error
}

// Service marks and lists attendance.
type Service struct {
	store  Store
	ledger Ledger
	feed   notify.Feed
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an attendance service.
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

// Mark is the result of MarkAttended.
type Mark struct {
	Attendance     models.Attendance `json:"attendance"`
	New            bool              `json:"new"`
	AttendingCount int               `json:"attending_count"`
}

// MarkAttended records userID as present. Marking twice is a no-op.
func (s *Service) MarkAttended(ctx context.Context, caller models.Caller, eventID, userID string) (*Mark, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	if err := s.ledger.RequireActive(ctx, eventID, userID); err != nil {
		return nil, err
	}

	a := models.Attendance{EventID: eventID, UserID: userID, MarkedBy: caller.UserID, MarkedAt: s.now()}
	created, err := s.store.MarkAttended(ctx, a)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	n, err := s.store.CountAttendance(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := s.store.SetAttendingCount(ctx, eventID, n); err != nil {
		return nil, store.Classify(err, "event")
	}
	if created {
		s.feed.Publish(ctx, eventID, notify.LiveAttendance, map[string]int{"attending_count": n})
		s.logger.Info("attendance marked",
			zap.String("event_id", eventID),
			zap.String("user_id", userID),
			zap.String("marked_by", caller.UserID),
		)
	}
	return &Mark{Attendance: a, New: created, AttendingCount: n}, nil
}

// ListAttendees returns the attendance records of an event for its managers.
func (s *Service) ListAttendees(ctx context.Context, caller models.Caller, eventID string) ([]models.Attendance, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	list, err := s.store.ListAttendance(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return list, nil
}
