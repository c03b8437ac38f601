// Package notify is the boundary to the messaging collaborator. The core
// only says who to reach and why; delivery happens elsewhere.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/models"
)

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// LogNotifier writes notifications to the log. It stands in when no queue
// is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n models.Notification) error {
	l.logger.Info("notification",
		zap.String("event_id", n.EventID),
		zap.String("kind", n.Kind),
		zap.String("subject", n.Subject),
		zap.Int("recipients", len(n.Recipients)),
	)
	return nil
}

// Live update kinds pushed to clients watching an event.
const (
	LiveRegistrations = "registration_count"
	LiveAttendance    = "attendance_count"
	LivePollOpened    = "poll_opened"
	LivePollResults   = "poll_results"
	LivePollClosed    = "poll_closed"
)

// Feed pushes live updates to the clients watching an event. Delivery is
// best effort and never fails the operation that produced the update.
type Feed interface {
	Publish(ctx context.Context, eventID, kind string, payload any)
}

// NopFeed drops every update.
type NopFeed struct{}

// Publish does nothing.
func (NopFeed) Publish(context.Context, string, string, any) {}
