package budget

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/store/memory"
)

var (
	organizer = models.Caller{UserID: "org", Role: models.RoleOrganizer}
	helper    = models.Caller{UserID: "helper", Role: models.RoleAttendee}
	outsider  = models.Caller{UserID: "nobody", Role: models.RoleAttendee}
)

func setup(t *testing.T) (*Service, string) {
	t.Helper()
	st := memory.New()
	e := &models.Event{
		ID:          "ev-1",
		Code:        "ABC123",
		OrganizerID: organizer.UserID,
		Title:       "Launch",
		Capacity:    10,
		Status:      models.EventUpcoming,
		Budget:      models.Budget{Total: 1000},
	}
	require.NoError(t, st.CreateEvent(context.Background(), e))
	return NewService(st, nil), e.ID
}

func status(s models.TaskStatus) *models.TaskStatus { return &s }

func TestTaskCompletionExpense(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, organizer, id, TaskInput{Title: "Book venue", Budget: 500, AssignedTo: helper.UserID})
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Zero(t, task.Spent)

	_, err = svc.UpdateTask(ctx, helper, id, task.ID, TaskUpdate{Status: status(models.TaskInProgress)})
	require.NoError(t, err)
	v, err := svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	assert.Empty(t, v.Expenses)

	done, err := svc.UpdateTask(ctx, helper, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	v, err = svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	require.Len(t, v.Expenses, 1)
	assert.Equal(t, "Task completed: Book venue", v.Expenses[0].Description)
	assert.Equal(t, 500.0, v.Expenses[0].Amount)
	assert.Equal(t, models.ExpenseCategoryTask, v.Expenses[0].Category)
	assert.Equal(t, task.ID, v.Expenses[0].TaskID)
	assert.Equal(t, 500.0, v.Spent)
	assert.Equal(t, 500.0, v.Remaining)

	_, err = svc.UpdateTask(ctx, helper, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
	require.NoError(t, err)
	v, err = svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	assert.Len(t, v.Expenses, 1)
	assert.Equal(t, 500.0, v.Spent)
}

func TestReopenedTaskDoesNotExpenseTwice(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, organizer, id, TaskInput{Title: "Catering", Budget: 200})
	require.NoError(t, err)
	_, err = svc.UpdateTask(ctx, organizer, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
	require.NoError(t, err)
	reopened, err := svc.UpdateTask(ctx, organizer, id, task.ID, TaskUpdate{Status: status(models.TaskInProgress)})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	_, err = svc.UpdateTask(ctx, organizer, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
	require.NoError(t, err)

	v, err := svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	assert.Len(t, v.Expenses, 1)
	assert.Equal(t, 200.0, v.Spent)
}

func TestZeroBudgetTaskAddsNoExpense(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, organizer, id, TaskInput{Title: "Send invites"})
	require.NoError(t, err)
	_, err = svc.UpdateTask(ctx, organizer, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
	require.NoError(t, err)

	v, err := svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	assert.Empty(t, v.Expenses)
}

func TestConcurrentCompletionAppendsOnce(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	task, err := svc.AddTask(ctx, organizer, id, TaskInput{Title: "Stage", Budget: 300, AssignedTo: helper.UserID})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		caller := organizer
		if i%2 == 0 {
			caller = helper
		}
		g.Go(func() error {
			_, err := svc.UpdateTask(ctx, caller, id, task.ID, TaskUpdate{Status: status(models.TaskCompleted)})
			return err
		})
	}
	require.NoError(t, g.Wait())

	v, err := svc.GetBudget(ctx, organizer, id)
	require.NoError(t, err)
	assert.Len(t, v.Expenses, 1)
	assert.Equal(t, 300.0, v.Spent)
}

func TestTaskAuthorization(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	_, err := svc.AddTask(ctx, helper, id, TaskInput{Title: "x"})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.AddTask(ctx, organizer, id, TaskInput{Title: "   "})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	task, err := svc.AddTask(ctx, organizer, id, TaskInput{Title: "Sound", AssignedTo: helper.UserID})
	require.NoError(t, err)

	_, err = svc.UpdateTask(ctx, outsider, id, task.ID, TaskUpdate{Status: status(models.TaskInProgress)})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	title := "Renamed"
	_, err = svc.UpdateTask(ctx, helper, id, task.ID, TaskUpdate{Title: &title})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	spent := 42.0
	got, err := svc.UpdateTask(ctx, helper, id, task.ID, TaskUpdate{Spent: &spent})
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Spent)

	_, err = svc.UpdateTask(ctx, organizer, id, "missing", TaskUpdate{Spent: &spent})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	bad := models.TaskStatus("done")
	_, err = svc.UpdateTask(ctx, organizer, id, task.ID, TaskUpdate{Status: &bad})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestExpensesAndAbsoluteSetters(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	_, err := svc.AddExpense(ctx, organizer, id, ExpenseInput{Description: "Flyers", Amount: 0})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddExpense(ctx, organizer, id, ExpenseInput{Description: "Flyers", Amount: -5})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddExpense(ctx, organizer, id, ExpenseInput{Description: " ", Amount: 5})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.AddExpense(ctx, helper, id, ExpenseInput{Description: "Flyers", Amount: 5})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	v, err := svc.AddExpense(ctx, organizer, id, ExpenseInput{Description: "Flyers", Amount: 50})
	require.NoError(t, err)
	require.Len(t, v.Expenses, 1)
	assert.Equal(t, DefaultExpenseCategory, v.Expenses[0].Category)
	assert.Equal(t, 50.0, v.Spent)

	v, err = svc.UpdateIncome(ctx, organizer, id, 250)
	require.NoError(t, err)
	v, err = svc.UpdateIncome(ctx, organizer, id, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.Income)

	v, err = svc.UpdateTotal(ctx, organizer, id, 2000)
	require.NoError(t, err)
	v, err = svc.UpdateSpent(ctx, organizer, id, 10)
	require.NoError(t, err)
	assert.Equal(t, 2000.0+100.0-10.0, v.Remaining)
	assert.Len(t, v.Expenses, 1)

	_, err = svc.UpdateTotal(ctx, organizer, id, -1)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.GetBudget(ctx, helper, id)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = svc.GetBudget(ctx, organizer, "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestExpenseAcceptsSubCentAmount(t *testing.T) {
	svc, id := setup(t)
	ctx := context.Background()

	v, err := svc.AddExpense(ctx, organizer, id, ExpenseInput{Description: "Rounding", Amount: 0.005})
	require.NoError(t, err)
	require.Len(t, v.Expenses, 1)
	assert.InDelta(t, 0.005, v.Spent, 1e-9)
}
