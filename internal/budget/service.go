// Package budget is the task and budget ledger of an event. Every change is
// a single read-modify-write of the event aggregate, so a task's status flip
// and its automatic expense are never split.
package budget

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
	"github.com/aura-events/backend/internal/store"
)

// DefaultExpenseCategory is used when an expense has no category.
const DefaultExpenseCategory = "general"

// Service implements task and budget operations.
type Service struct {
	events store.EventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a budget service.
func NewService(events store.EventStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// View is the budget as returned to callers, with the derived remainder.
type View struct {
	Total     float64          `json:"total"`
	Income    float64          `json:"income"`
	Spent     float64          `json:"spent"`
	Remaining float64          `json:"remaining"`
	Expenses  []models.Expense `json:"expenses"`
}

func viewOf(b models.Budget) *View {
	exp := b.Expenses
	if exp == nil {
		exp = []models.Expense{}
	}
	return &View{Total: b.Total, Income: b.Income, Spent: b.Spent, Remaining: b.Remaining(), Expenses: exp}
}

// TaskInput carries a new task.
type TaskInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssignedTo  string  `json:"assigned_to"`
	Budget      float64 `json:"budget"`
	Deadline    string  `json:"deadline"`
}

// Validate checks the task fields.
func (in TaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Budget, validation.Min(0.0)),
	)
}

// parseDeadline accepts a date or an RFC 3339 timestamp.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, apperr.Validation("deadline must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}

// AddTask appends a pending task. Managers only.
func (s *Service) AddTask(ctx context.Context, caller models.Caller, eventID string, in TaskInput) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	deadline, err := parseDeadline(in.Deadline)
	if err != nil {
		return nil, err
	}
	task := models.Task{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		Budget:      in.Budget,
		Status:      models.TaskPending,
		Deadline:    deadline,
		CreatedAt:   s.now(),
	}
	_, err = s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		if err := access.RequireManager(e, caller); err != nil {
			return err
		}
		e.Tasks = append(e.Tasks, task)
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return &task, nil
}

// TaskUpdate is a partial task change. Assignees who are not managers may
// only change Status and Spent.
type TaskUpdate struct {
	Status      *models.TaskStatus `json:"status"`
	Spent       *float64           `json:"spent"`
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	AssignedTo  *string            `json:"assigned_to"`
	Budget      *float64           `json:"budget"`
	Deadline    *string            `json:"deadline"`
}

// Validate checks the fields present in the update.
func (in TaskUpdate) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Status, validation.In(models.TaskPending, models.TaskInProgress, models.TaskCompleted)),
		validation.Field(&in.Spent, validation.Min(0.0)),
		validation.Field(&in.Title, validation.NilOrNotEmpty),
		validation.Field(&in.Budget, validation.Min(0.0)),
	)
}

func (in TaskUpdate) managerOnly() bool {
	return in.Title != nil || in.Description != nil || in.AssignedTo != nil || in.Budget != nil || in.Deadline != nil
}

// UpdateTask changes a task. Moving into completed appends one expense of
// the task budget, unless the ledger already holds that task's expense.
func (s *Service) UpdateTask(ctx context.Context, caller models.Caller, eventID, taskID string, in TaskUpdate) (*models.Task, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	var deadline *time.Time
	if in.Deadline != nil {
		d, err := parseDeadline(*in.Deadline)
		if err != nil {
			return nil, err
		}
		deadline = d
	}

	var (
		out      models.Task
		expensed bool
	)
	_, err := s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		expensed = false
		task := e.TaskByID(taskID)
		if task == nil {
			return apperr.NotFound("task not found")
		}
		if !access.CanUpdateTask(e, task, caller) {
			return apperr.Unauthorized("only managers or the assignee may update this task")
		}
		if in.managerOnly() && !access.IsManager(e, caller) {
			return apperr.Unauthorized("assignees may only change status and spent")
		}
		if in.Title != nil {
			task.Title = *in.Title
		}
		if in.Description != nil {
			task.Description = *in.Description
		}
		if in.AssignedTo != nil {
			task.AssignedTo = strings.TrimSpace(*in.AssignedTo)
		}
		if in.Budget != nil {
			task.Budget = *in.Budget
		}
		if in.Deadline != nil {
			task.Deadline = deadline
		}
		if in.Spent != nil {
			task.Spent = *in.Spent
		}
		if in.Status != nil {
			expensed = s.transition(e, task, *in.Status)
		}
		out = *task
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if expensed {
		s.logger.Info("task completion expensed",
			zap.String("event_id", eventID),
			zap.String("task_id", taskID),
			zap.Float64("amount", out.Budget),
		)
	}
	return &out, nil
}

// transition sets the task status and applies the completion side effect.
// It reports whether an expense was appended.
func (s *Service) transition(e *models.Event, task *models.Task, to models.TaskStatus) bool {
	from := task.Status
	task.Status = to
	if to != models.TaskCompleted {
		task.CompletedAt = nil
		return false
	}
	if from == models.TaskCompleted {
		return false
	}
	now := s.now()
	task.CompletedAt = &now
	if task.Budget <= 0 || e.Budget.HasTaskExpense(task.ID) {
		return false
	}
	e.Budget.Expenses = append(e.Budget.Expenses, models.Expense{
		ID:          uuid.New().String(),
		Description: "Task completed: " + task.Title,
		Amount:      task.Budget,
		Category:    models.ExpenseCategoryTask,
		TaskID:      task.ID,
		Date:        now,
	})
	e.Budget.Spent += task.Budget
	return true
}

// ExpenseInput carries a manual expense.
type ExpenseInput struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
}

// Validate checks the expense fields.
func (in ExpenseInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Amount, validation.By(positiveAmount)),
	)
}

func positiveAmount(value interface{}) error {
	if v, _ := value.(float64); v <= 0 {
		return errors.New("must be greater than zero")
	}
	return nil
}

// AddExpense appends an expense and adds it to spent. Managers only.
func (s *Service) AddExpense(ctx context.Context, caller models.Caller, eventID string, in ExpenseInput) (*View, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := apperr.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	if in.Category == "" {
		in.Category = DefaultExpenseCategory
	}
	e, err := s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		if err := access.RequireManager(e, caller); err != nil {
			return err
		}
		e.Budget.Expenses = append(e.Budget.Expenses, models.Expense{
			ID:          uuid.New().String(),
			Description: in.Description,
			Amount:      in.Amount,
			Category:    in.Category,
			Date:        s.now(),
		})
		e.Budget.Spent += in.Amount
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return viewOf(e.Budget), nil
}

// Field names a directly settable budget figure.
type Field string

const (
	FieldTotal  Field = "total"
	FieldIncome Field = "income"
	FieldSpent  Field = "spent"
)

// SetField overwrites one budget figure. The write is absolute: the last
// writer wins, and overwriting spent replaces whatever completions added.
func (s *Service) SetField(ctx context.Context, caller models.Caller, eventID string, field Field, value float64) (*View, error) {
	if value < 0 {
		return nil, apperr.Validation("%s: must be no less than 0", field)
	}
	e, err := s.events.MutateEvent(ctx, eventID, func(e *models.Event) error {
		if err := access.RequireManager(e, caller); err != nil {
			return err
		}
		switch field {
		case FieldTotal:
			e.Budget.Total = value
		case FieldIncome:
			e.Budget.Income = value
		case FieldSpent:
			e.Budget.Spent = value
		default:
			return apperr.Validation("unknown budget field %q", field)
		}
		return nil
	})
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	return viewOf(e.Budget), nil
}

// UpdateTotal overwrites the planned total.
func (s *Service) UpdateTotal(ctx context.Context, caller models.Caller, eventID string, v float64) (*View, error) {
	return s.SetField(ctx, caller, eventID, FieldTotal, v)
}

// UpdateIncome overwrites income. Callers wanting to add must read first.
func (s *Service) UpdateIncome(ctx context.Context, caller models.Caller, eventID string, v float64) (*View, error) {
	return s.SetField(ctx, caller, eventID, FieldIncome, v)
}

// UpdateSpent overwrites spent.
func (s *Service) UpdateSpent(ctx context.Context, caller models.Caller, eventID string, v float64) (*View, error) {
	return s.SetField(ctx, caller, eventID, FieldSpent, v)
}

// GetBudget returns the ledger. Managers only.
func (s *Service) GetBudget(ctx context.Context, caller models.Caller, eventID string) (*View, error) {
	e, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, store.Classify(err, "event")
	}
	if err := access.RequireManager(e, caller); err != nil {
		return nil, err
	}
	return viewOf(e.Budget), nil
}
