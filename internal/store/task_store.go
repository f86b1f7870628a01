package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workboard/internal/model"
)

// CreateTask inserts a new task and assigns it the next sequential
// task number. The counter increment and the insert share one
// transaction, so concurrent creation never produces duplicate numbers.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = model.TaskStatusBacklog
	}
	if !model.ValidTaskStatus(t.Status) {
		return fmt.Errorf("invalid task status %q", t.Status)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE task_counter SET value = value + 1 WHERE id = 1",
	); err != nil {
		return fmt.Errorf("incrementing task counter: %w", err)
	}
	if err := tx.GetContext(ctx, &t.Number,
		"SELECT value FROM task_counter WHERE id = 1",
	); err != nil {
		return fmt.Errorf("reading task counter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (
			id, workspace_id, service_id, number, title, description,
			status, assignee_id, reviewer_id, due_date, overdue,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.WorkspaceID, t.ServiceID, t.Number, t.Title, t.Description,
		t.Status, t.AssigneeID, t.ReviewerID, utcOrNil(t.DueDate),
		boolToInt(t.Overdue), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating task %s: %w", t.Title, err)
	}

	return tx.Commit()
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var t model.Task
	if err := s.getOne(ctx, &t, "SELECT * FROM tasks WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &t, nil
}

// GetTasks retrieves tasks matching the provided filter options.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	conditions := []string{"workspace_id = ?"}
	args := []interface{}{filter.WorkspaceID}

	if filter.ServiceID != nil {
		conditions = append(conditions, "service_id = ?")
		args = append(args, *filter.ServiceID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.AssigneeID != nil {
		conditions = append(conditions, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Overdue != nil {
		conditions = append(conditions, "overdue = ?")
		args = append(args, boolToInt(*filter.Overdue))
	}
	if filter.Query != nil && *filter.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ?)")
		q := "%" + *filter.Query + "%"
		args = append(args, q, q)
	}

	query := "SELECT * FROM tasks WHERE " + strings.Join(conditions, " AND ")

	// Determine sort column.
	sortBy := "number"
	if filter.SortBy != "" {
		allowedSorts := map[string]bool{
			"number":     true,
			"title":      true,
			"status":     true,
			"due_date":   true,
			"created_at": true,
			"updated_at": true,
		}
		if allowedSorts[filter.SortBy] {
			sortBy = filter.SortBy
		}
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskStatus moves a task to a new kanban status. Reaching DONE
// or ARCHIVED also clears the overdue flag.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id, status string) error {
	if !model.ValidTaskStatus(status) {
		return fmt.Errorf("invalid task status %q", status)
	}

	clearOverdue := status == model.TaskStatusDone || status == model.TaskStatusArchived
	query := "UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?"
	if clearOverdue {
		query = "UPDATE tasks SET status = ?, updated_at = ?, overdue = 0 WHERE id = ?"
	}

	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status of task %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTaskAssignee sets (or clears) the task's assignee.
func (s *SQLiteStore) SetTaskAssignee(ctx context.Context, id string, assigneeID *string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET assignee_id = ?, updated_at = ? WHERE id = ?",
		assigneeID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("assigning task %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTaskReviewer sets (or clears) the task's reviewer.
func (s *SQLiteStore) SetTaskReviewer(ctx context.Context, id string, reviewerID *string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET reviewer_id = ?, updated_at = ? WHERE id = ?",
		reviewerID, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting reviewer of task %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkOverdueTasks flags tasks whose due date is before cutoff and
// whose status is still open. Already-flagged tasks are untouched, so
// a second run with no newly-overdue tasks reports zero.
func (s *SQLiteStore) MarkOverdueTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET overdue = 1, updated_at = ?
		WHERE overdue = 0
		  AND due_date IS NOT NULL AND due_date < ?
		  AND status IN (?, ?, ?)`,
		time.Now().UTC(), cutoff.UTC(),
		model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusInReview,
	)
	if err != nil {
		return 0, fmt.Errorf("marking overdue tasks: %w", err)
	}
	return result.RowsAffected()
}

// ClearOverdueFlags unflags tasks that are no longer overdue: due
// date moved into the future, removed, or status left the open set.
func (s *SQLiteStore) ClearOverdueFlags(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET overdue = 0, updated_at = ?
		WHERE overdue = 1
		  AND (due_date IS NULL OR due_date >= ? OR status NOT IN (?, ?, ?))`,
		time.Now().UTC(), cutoff.UTC(),
		model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusInReview,
	)
	if err != nil {
		return 0, fmt.Errorf("clearing overdue flags: %w", err)
	}
	return result.RowsAffected()
}

// GetWorkspaceStats computes the KPI snapshot for a workspace.
func (s *SQLiteStore) GetWorkspaceStats(ctx context.Context, workspaceID string, now time.Time) (*WorkspaceStats, error) {
	stats := &WorkspaceStats{ByStatus: make(map[string]int)}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM tasks WHERE workspace_id = ? GROUP BY status",
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting tasks by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalTasks += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &stats.OverdueTasks,
		"SELECT COUNT(*) FROM tasks WHERE workspace_id = ? AND overdue = 1",
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting overdue tasks: %w", err)
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	err = s.db.GetContext(ctx, &stats.DoneThisMonth, `
		SELECT COUNT(*) FROM tasks
		WHERE workspace_id = ? AND status = ? AND updated_at >= ?`,
		workspaceID, model.TaskStatusDone, monthStart,
	)
	if err != nil {
		return nil, fmt.Errorf("counting tasks done this month: %w", err)
	}

	return stats, nil
}

// AddChecklistItem inserts a checklist item on a task.
func (s *SQLiteStore) AddChecklistItem(ctx context.Context, item model.ChecklistItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklist_items (id, task_id, text, checked, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.TaskID, item.Text, boolToInt(item.Checked),
		item.SortOrder, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("adding checklist item: %w", err)
	}
	return nil
}

// GetChecklistItems retrieves a task's checklist items in sort order.
func (s *SQLiteStore) GetChecklistItems(ctx context.Context, taskID string) ([]model.ChecklistItem, error) {
	var items []model.ChecklistItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM checklist_items WHERE task_id = ? ORDER BY sort_order, created_at",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying checklist items of task %s: %w", taskID, err)
	}
	return items, nil
}

// ToggleChecklistItem flips the checked state of a checklist item.
// The item must sit on a task in the given workspace; items elsewhere
// read as missing.
func (s *SQLiteStore) ToggleChecklistItem(ctx context.Context, id, workspaceID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET checked = 1 - checked
		WHERE id = ?
		  AND task_id IN (SELECT id FROM tasks WHERE workspace_id = ?)`,
		id, workspaceID,
	)
	if err != nil {
		return fmt.Errorf("toggling checklist item %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
