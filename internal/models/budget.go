package models

import "time"

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

// ExpenseCategoryTask marks expenses appended automatically on task completion.
const ExpenseCategoryTask = "task"

// Expense is one entry of an event's append-only budget ledger.
type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	TaskID      string    `json:"task_id,omitempty"`
	Date        time.Time `json:"date"`
}

// Budget is the money side of an event. Remaining is always derived.
type Budget struct {
	Total    float64   `json:"total"`
	Income   float64   `json:"income"`
	Spent    float64   `json:"spent"`
	Expenses []Expense `json:"expenses"`
}

// Remaining returns total + income - spent.
func (b Budget) Remaining() float64 {
	return b.Total + b.Income - b.Spent
}

// HasTaskExpense reports whether the ledger already holds the automatic
// completion expense for taskID.
func (b Budget) HasTaskExpense(taskID string) bool {
	for _, x := range b.Expenses {
		if x.TaskID == taskID && x.Category == ExpenseCategoryTask {
			return true
		}
	}
	return false
}

// Task is a unit of work inside an event.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	Budget      float64    `json:"budget"`
	Spent       float64    `json:"spent"`
	Status      TaskStatus `json:"status"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (t Task) clone() Task {
	if t.Deadline != nil {
		d := *t.Deadline
		t.Deadline = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	return t
}
