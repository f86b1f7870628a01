package model

import (
	"fmt"
	"time"
)

// Task status constants, ordered as the kanban columns.
const (
	TaskStatusBacklog    = "BACKLOG"
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusInReview   = "IN_REVIEW"
	TaskStatusDone       = "DONE"
	TaskStatusArchived   = "ARCHIVED"
)

// TaskStatuses lists every valid task status.
var TaskStatuses = []string{
	TaskStatusBacklog,
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusInReview,
	TaskStatusDone,
	TaskStatusArchived,
}

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s string) bool {
	for _, v := range TaskStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// OpenTaskStatuses are the statuses considered "in flight" for the
// overdue sweep: a task past its due date in one of these statuses
// gets the overdue flag.
var OpenTaskStatuses = []string{
	TaskStatusTodo,
	TaskStatusInProgress,
	TaskStatusInReview,
}

// Task is a unit of work inside a workspace, optionally belonging to
// a service. Tasks are created by users or materialized by the
// recurring-task scheduler.
type Task struct {
	// ID is the internal unique identifier for this task.
	ID string `json:"id" db:"id"`

	// WorkspaceID scopes the task to its workspace.
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// ServiceID links the task to a service (project), if any.
	ServiceID *string `json:"service_id,omitempty" db:"service_id"`

	// Number is the human-readable sequential task number,
	// globally unique and monotonically increasing.
	Number int64 `json:"number" db:"number"`

	// Title is the short summary shown on the board.
	Title string `json:"title" db:"title"`

	// Description is the full body text.
	Description string `json:"description" db:"description"`

	// Status is one of the TaskStatus* constants.
	Status string `json:"status" db:"status"`

	// AssigneeID is the member assigned to work on the task, if any.
	AssigneeID *string `json:"assignee_id,omitempty" db:"assignee_id"`

	// ReviewerID is the member assigned to review the task, if any.
	ReviewerID *string `json:"reviewer_id,omitempty" db:"reviewer_id"`

	// DueDate is when the task is expected to be done, if set.
	DueDate *time.Time `json:"due_date,omitempty" db:"due_date"`

	// Overdue is maintained by the overdue sweep: true while DueDate
	// has passed and the task is still in an open status.
	Overdue bool `json:"overdue" db:"overdue"`

	// CreatedBy is the user who created the task; empty for tasks
	// spawned by the recurring-task scheduler.
	CreatedBy string `json:"created_by" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayNumber renders the task number in its canonical
// human-readable form, e.g. "Task #0000042".
func (t Task) DisplayNumber() string {
	return FormatTaskNumber(t.Number)
}

// FormatTaskNumber renders a sequential task number as "Task #NNNNNNN".
func FormatTaskNumber(n int64) string {
	return fmt.Sprintf("Task #%07d", n)
}

// ChecklistItem is a sub-entry within a task. Its lifecycle is bound
// to the parent task (CASCADE delete). Routinary services seed these
// from their checklist template when a task is spawned.
type ChecklistItem struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	Text      string    `json:"text" db:"text"`
	Checked   bool      `json:"checked" db:"checked"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
