package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/workboard/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// TaskFilter controls filtering, sorting, and pagination for task queries.
type TaskFilter struct {
	WorkspaceID string
	ServiceID   *string
	Status      *string
	AssigneeID  *string
	Overdue     *bool
	Query       *string // search title + description
	SortBy      string  // "number", "due_date", "status", "created_at", "updated_at"
	SortDesc    bool
	Limit       int
	Offset      int
}

// NotificationFilter controls filtering and pagination for a user's
// notification feed within a workspace.
type NotificationFilter struct {
	WorkspaceID string
	RecipientID string
	Type        *model.NotificationType
	UnreadOnly  bool
	Page        int // 1-based
	Limit       int
}

// WorkspaceStats is the KPI snapshot for a workspace.
type WorkspaceStats struct {
	TotalTasks    int            `json:"total_tasks"`
	ByStatus      map[string]int `json:"by_status"`
	OverdueTasks  int            `json:"overdue_tasks"`
	DoneThisMonth int            `json:"done_this_month"`
}

// Store defines the persistence interface for workspaces, services,
// tasks, messages, notifications, and their associated entities.
type Store interface {
	// === Users & sessions ===

	CreateUser(ctx context.Context, u model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// === Workspaces & members ===

	CreateWorkspace(ctx context.Context, w model.Workspace) error
	GetWorkspaceByID(ctx context.Context, id string) (*model.Workspace, error)
	AddMember(ctx context.Context, m model.Member) error
	GetMember(ctx context.Context, workspaceID, userID string) (*model.Member, error)
	GetMembers(ctx context.Context, workspaceID string) ([]model.Member, error)

	// === Services ===

	CreateService(ctx context.Context, svc model.Service) error
	UpdateService(ctx context.Context, svc model.Service) error
	GetServiceByID(ctx context.Context, id string) (*model.Service, error)
	GetServices(ctx context.Context, workspaceID string) ([]model.Service, error)

	// GetDueRoutinaryServices returns routinary services whose next
	// run date is at or before now.
	GetDueRoutinaryServices(ctx context.Context, now time.Time) ([]model.Service, error)

	// AdvanceRoutinarySchedule conditionally advances a service's
	// schedule: the write applies only if routinary_next_run_date
	// still equals expectedNextRun. Returns false when another
	// invocation advanced the schedule first.
	AdvanceRoutinarySchedule(ctx context.Context, serviceID string, expectedNextRun, newNextRun, lastRun time.Time) (bool, error)

	// === Tasks ===

	// CreateTask inserts a task and assigns it the next sequential
	// task number. The assigned number is written back to t.
	CreateTask(ctx context.Context, t *model.Task) error
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTaskStatus(ctx context.Context, id, status string) error
	SetTaskAssignee(ctx context.Context, id string, assigneeID *string) error
	SetTaskReviewer(ctx context.Context, id string, reviewerID *string) error

	// MarkOverdueTasks flags open tasks whose due date is before
	// cutoff; ClearOverdueFlags unflags tasks no longer overdue.
	// Both return the number of rows changed.
	MarkOverdueTasks(ctx context.Context, cutoff time.Time) (int64, error)
	ClearOverdueFlags(ctx context.Context, cutoff time.Time) (int64, error)

	GetWorkspaceStats(ctx context.Context, workspaceID string, now time.Time) (*WorkspaceStats, error)

	// === Checklist ===

	AddChecklistItem(ctx context.Context, item model.ChecklistItem) error
	GetChecklistItems(ctx context.Context, taskID string) ([]model.ChecklistItem, error)

	// ToggleChecklistItem flips an item's checked state. The item's
	// parent task must belong to workspaceID, otherwise ErrNotFound.
	ToggleChecklistItem(ctx context.Context, id, workspaceID string) error

	// === Task messages ===

	CreateMessage(ctx context.Context, m model.TaskMessage) error
	GetMessages(ctx context.Context, taskID string, limit, offset int) ([]model.TaskMessage, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n model.Notification) error
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, int, error)
	MarkNotificationsRead(ctx context.Context, recipientID string, ids []string, now time.Time) (int64, error)
	MarkTaskNotificationsRead(ctx context.Context, recipientID, taskID string, now time.Time) (int64, error)
	MarkAllNotificationsRead(ctx context.Context, recipientID, workspaceID string, now time.Time) (int64, error)

	// === Attachments ===

	CreateAttachment(ctx context.Context, a model.TaskAttachment) error
	GetAttachments(ctx context.Context, taskID string) ([]model.TaskAttachment, error)
	DeleteAttachment(ctx context.Context, id string) error
}
