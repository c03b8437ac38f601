package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/polls"
	"github.com/aura-events/backend/internal/registrations"
	"github.com/aura-events/backend/internal/store/memory"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	st := memory.New()
	require.NoError(t, st.CreateEvent(ctx, &models.Event{
		ID:            "e1",
		Code:          "DASH01",
		OrganizerID:   "org",
		Title:         "Summit",
		Capacity:      4,
		AccessType:    models.AccessOpen,
		Status:        models.EventOngoing,
		Collaborators: []models.Collaborator{{UserID: "co"}},
		Budget:        models.Budget{Total: 1000, Income: 200, Spent: 300, Expenses: []models.Expense{{ID: "x", Amount: 300}}},
		Tasks: []models.Task{
			{ID: "t1", Title: "Venue", AssignedTo: "co", Budget: 300, Status: models.TaskCompleted, Deadline: &past},
			{ID: "t2", Title: "Food", AssignedTo: "co", Budget: 100, Spent: 20, Status: models.TaskInProgress, Deadline: &past},
			{ID: "t3", Title: "Music", AssignedTo: "dj", Status: models.TaskPending, Deadline: &future},
			{ID: "t4", Title: "Signs", Status: models.TaskPending},
		},
	}))
	ledger := registrations.NewService(st, registrations.Paging{}, nil)
	pollSvc := polls.NewService(st, ledger, nil)
	org := models.Caller{UserID: "org", Role: models.RoleOrganizer}

	for _, u := range []string{"a", "b", "c"} {
		_, err := ledger.Register(ctx, models.Caller{UserID: u, Role: models.RoleAttendee}, "e1", "")
		require.NoError(t, err)
	}
	_, err := st.MarkAttended(ctx, models.Attendance{EventID: "e1", UserID: "a", MarkedAt: now})
	require.NoError(t, err)
	require.NoError(t, st.UpsertFeedback(ctx, &models.Feedback{ID: "f1", EventID: "e1", UserID: "a", Rating: 4}))
	_, err = pollSvc.Create(ctx, org, "e1", polls.CreateInput{Question: "Again?", Options: []string{"yes", "no"}})
	require.NoError(t, err)
	st.OverrideRegisteredCount("e1", 9)

	svc := NewService(st, ledger, pollSvc, nil)
	svc.now = func() time.Time { return now }

	_, err = svc.Build(ctx, models.Caller{UserID: "a", Role: models.RoleAttendee}, "e1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = svc.Build(ctx, models.Caller{UserID: "root", Role: models.RoleAdmin}, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	d, err := svc.Build(ctx, models.Caller{UserID: "co", Role: models.RoleAttendee}, "e1")
	require.NoError(t, err)

	assert.Equal(t, 4, d.Tasks.Total)
	assert.Equal(t, 2, d.Tasks.ByStatus[models.TaskPending])
	assert.Equal(t, 1, d.Tasks.ByStatus[models.TaskInProgress])
	assert.Equal(t, 1, d.Tasks.ByStatus[models.TaskCompleted])
	assert.Equal(t, 1, d.Tasks.Overdue)
	assert.Equal(t, 1, d.Tasks.Unassigned)
	assert.InDelta(t, 0.25, d.Tasks.CompletionRate, 0.0001)
	require.Len(t, d.Tasks.ByAssignee, 2)
	assert.Equal(t, AssigneeStats{UserID: "co", Total: 2, InProgress: 1, Completed: 1, Budget: 400, Spent: 20}, d.Tasks.ByAssignee[0])
	assert.Equal(t, "dj", d.Tasks.ByAssignee[1].UserID)

	assert.Equal(t, BudgetSummary{Projected: 1000, Income: 200, Spent: 300, Remaining: 900, Expenses: 1}, d.Budget)
	assert.Equal(t, AttendeeSummary{Capacity: 4, Registered: 3, Attending: 1, Remaining: 1}, d.Attendees)
	assert.Equal(t, 1, d.Feedback.Count)
	require.Len(t, d.Polls, 1)
	assert.Equal(t, []int{0, 0}, d.Polls[0].Counts)

	e, err := st.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 3, e.RegisteredCount)
	assert.Len(t, e.Budget.Expenses, 1)
}
