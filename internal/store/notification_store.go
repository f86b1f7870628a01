package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workboard/internal/model"
)

// CreateNotification inserts a new notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) error {
	if !n.Type.Valid() {
		return fmt.Errorf("invalid notification type %q", n.Type)
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			id, workspace_id, recipient_id, type, title, message,
			task_id, message_id, mentioner_id, read, read_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.WorkspaceID, n.RecipientID, string(n.Type), n.Title, n.Message,
		n.TaskID, n.MessageID, n.MentionerID,
		boolToInt(n.Read), utcOrNil(n.ReadAt), n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// GetNotifications retrieves one page of a user's notifications in a
// workspace, newest first, along with the total count for the filter.
func (s *SQLiteStore) GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, int, error) {
	conditions := []string{"workspace_id = ?", "recipient_id = ?"}
	args := []interface{}{filter.WorkspaceID, filter.RecipientID}

	if filter.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM notifications"+where, args...,
	); err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(
		"SELECT * FROM notifications%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		where, limit, (page-1)*limit,
	)

	var notifications []model.Notification
	if err := s.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("querying notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkNotificationsRead marks the given notifications as read for a
// recipient. IDs belonging to other users are ignored. Returns the
// number of notifications newly marked.
func (s *SQLiteStore) MarkNotificationsRead(ctx context.Context, recipientID string, ids []string, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []interface{}{now.UTC(), recipientID}
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE notifications SET read = 1, read_at = ?
		WHERE recipient_id = ? AND read = 0 AND id IN (%s)`, placeholders),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}

// MarkTaskNotificationsRead marks all of a recipient's unread
// notifications that reference the given task.
func (s *SQLiteStore) MarkTaskNotificationsRead(ctx context.Context, recipientID, taskID string, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?
		WHERE recipient_id = ? AND task_id = ? AND read = 0`,
		now.UTC(), recipientID, taskID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking task notifications read: %w", err)
	}
	return result.RowsAffected()
}

// MarkAllNotificationsRead marks every unread notification for a
// recipient in a workspace.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, recipientID, workspaceID string, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?
		WHERE recipient_id = ? AND workspace_id = ? AND read = 0`,
		now.UTC(), recipientID, workspaceID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return result.RowsAffected()
}
