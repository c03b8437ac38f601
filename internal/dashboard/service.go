// Package dashboard composes the read-only overview of an event for its
// managers.
package dashboard

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aura-events/backend/internal/access"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store"
)

// Store is the read surface the dashboard draws on.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CountRegistrations(ctx context.Context, eventID string, status models.RegistrationStatus) (int, error)
	CountAttendance(ctx context.Context, eventID string) (int, error)
	FeedbackSummary(ctx context.Context, eventID string) (models.FeedbackSummary, error)
}

// Refresher recomputes the registered counter before the read.
type Refresher interface {
	Refresh(ctx context.Context, eventID string) error
}

// PollSource summarizes an event's polls.
type PollSource interface {
	Summaries(ctx context.Context, eventID string) ([]models.PollSummary, error)
}

// AssigneeStats counts the tasks held by one user.
type AssigneeStats struct {
	UserID     string  `json:"user_id"`
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	InProgress int     `json:"in_progress"`
	Completed  int     `json:"completed"`
	Budget     float64 `json:"budget"`
	Spent      float64 `json:"spent"`
}

// TaskStats summarizes the task list.
type TaskStats struct {
	Total          int                       `json:"total"`
	ByStatus       map[models.TaskStatus]int `json:"by_status"`
	Overdue        int                       `json:"overdue"`
	CompletionRate float64                   `json:"completion_rate"`
	ByAssignee     []AssigneeStats           `json:"by_assignee"`
	Unassigned     int                       `json:"unassigned"`
}

// BudgetSummary is the money overview. Projected is the planned total.
type BudgetSummary struct {
	Projected float64 `json:"projected"`
	Income    float64 `json:"income"`
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
	Expenses  int     `json:"expenses"`
}

// AttendeeSummary compares registrations with actual attendance.
type AttendeeSummary struct {
	Capacity   int `json:"capacity"`
	Registered int `json:"registered"`
	Attending  int `json:"attending"`
	Remaining  int `json:"remaining"`
}

// Dashboard is the full overview of one event.
type Dashboard struct {
	EventID     string                 `json:"event_id"`
	Title       string                 `json:"title"`
	Status      models.EventStatus     `json:"status"`
	Tasks       TaskStats              `json:"tasks"`
	Budget      BudgetSummary          `json:"budget"`
	Attendees   AttendeeSummary        `json:"attendees"`
	Feedback    models.FeedbackSummary `json:"feedback"`
	Polls       []models.PollSummary   `json:"polls"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Service builds dashboards.
type Service struct {
	store   Store
	refresh Refresher
	polls   PollSource
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a dashboard service. polls may be nil.
func NewService(st Store, refresh Refresher, polls PollSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, refresh: refresh, polls: polls, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Build returns the dashboard of eventID. Only managers may read it. Apart
// from refreshing the registered counter nothing is written.
func (s *Service) Build(ctx context.Context, caller models.Caller, eventID string) (*Dashboard, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	if s.refresh != nil {
		if err := s.refresh.Refresh(ctx, eventID); err != nil {
			return nil, err
		}
	}

	var (
		registered int
		attending  int
		feedback   models.FeedbackSummary
		polls      []models.PollSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountRegistrations(gctx, eventID, models.RegistrationRegistered)
		registered = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountAttendance(gctx, eventID)
		attending = n
		return err
	})
	g.Go(func() error {
		f, err := s.store.FeedbackSummary(gctx, eventID)
		feedback = f
		return err
	})
	if s.polls != nil {
		g.Go(func() error {
			p, err := s.polls.Summaries(gctx, eventID)
			polls = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, store.Classify(err, "event")
	}
	if polls == nil {
		polls = []models.PollSummary{}
	}

	now := s.now()
	remaining := e.Capacity - registered
	if remaining < 0 {
		remaining = 0
	}
	return &Dashboard{
		EventID: e.ID,
		Title:   e.Title,
		Status:  e.Status,
		Tasks:   taskStats(e.Tasks, now),
		Budget: BudgetSummary{
			Projected: e.Budget.Total,
			Income:    e.Budget.Income,
			Spent:     e.Budget.Spent,
			Remaining: e.Budget.Remaining(),
			Expenses:  len(e.Budget.Expenses),
		},
		Attendees: AttendeeSummary{
			Capacity:   e.Capacity,
			Registered: registered,
			Attending:  attending,
			Remaining:  remaining,
		},
		Feedback:    feedback,
		Polls:       polls,
		GeneratedAt: now,
	}, nil
}

func taskStats(tasks []models.Task, now time.Time) TaskStats {
	st := TaskStats{
		Total: len(tasks),
		ByStatus: map[models.TaskStatus]int{
			models.TaskPending:    0,
			models.TaskInProgress: 0,
			models.TaskCompleted:  0,
		},
		ByAssignee: []AssigneeStats{},
	}
	byUser := make(map[string]*AssigneeStats)
	for _, t := range tasks {
		st.ByStatus[t.Status]++
		if t.Status != models.TaskCompleted && t.Deadline != nil && t.Deadline.Before(now) {
			st.Overdue++
		}
		if t.AssignedTo == "" {
			st.Unassigned++
			continue
		}
		a, ok := byUser[t.AssignedTo]
		if !ok {
			a = &AssigneeStats{UserID: t.AssignedTo}
			byUser[t.AssignedTo] = a
		}
		a.Total++
		a.Budget += t.Budget
		a.Spent += t.Spent
		switch t.Status {
		case models.TaskPending:
			a.Pending++
		case models.TaskInProgress:
			a.InProgress++
		case models.TaskCompleted:
			a.Completed++
		}
	}
	if st.Total > 0 {
		st.CompletionRate = float64(st.ByStatus[models.TaskCompleted]) / float64(st.Total)
	}
	for _, a := range byUser {
		st.ByAssignee = append(st.ByAssignee, *a)
	}
	sort.Slice(st.ByAssignee, func(i, j int) bool { return st.ByAssignee[i].UserID < st.ByAssignee[j].UserID })
	return st
}
