package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workboard/internal/model"
)

// CreateMessage inserts a chat message on a task.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m model.TaskMessage) error {
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message content must not be empty")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_messages (id, task_id, workspace_id, author_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.TaskID, m.WorkspaceID, m.AuthorID, m.Content, m.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating message on task %s: %w", m.TaskID, err)
	}
	return nil
}

// GetMessages retrieves a task's messages ordered oldest-first.
func (s *SQLiteStore) GetMessages(ctx context.Context, taskID string, limit, offset int) ([]model.TaskMessage, error) {
	query := "SELECT * FROM task_messages WHERE task_id = ? ORDER BY created_at"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	var messages []model.TaskMessage
	if err := s.db.SelectContext(ctx, &messages, query, taskID); err != nil {
		return nil, fmt.Errorf("querying messages of task %s: %w", taskID, err)
	}
	return messages, nil
}

// CreateAttachment inserts attachment metadata for a task.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, a model.TaskAttachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.StorageKey == "" {
		return fmt.Errorf("attachment storage key must not be empty")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (
			id, task_id, workspace_id, file_name, content_type,
			size_bytes, storage_key, uploaded_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TaskID, a.WorkspaceID, a.FileName, a.ContentType,
		a.SizeBytes, a.StorageKey, a.UploadedBy, a.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating attachment %s: %w", a.FileName, err)
	}
	return nil
}

// GetAttachments retrieves a task's attachment records, newest first.
func (s *SQLiteStore) GetAttachments(ctx context.Context, taskID string) ([]model.TaskAttachment, error) {
	var attachments []model.TaskAttachment
	err := s.db.SelectContext(ctx, &attachments,
		"SELECT * FROM attachments WHERE task_id = ? ORDER BY created_at DESC",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attachments of task %s: %w", taskID, err)
	}
	return attachments, nil
}

// DeleteAttachment removes an attachment record by ID.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting attachment %s: %w", id, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
