package model

import "time"

// TaskMessage is a chat-style message posted on a task. Mentions in
// the content (@name, @all) are resolved against workspace members
// when the message is created.
type TaskMessage struct {
	ID          string    `json:"id" db:"id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TaskAttachment is file metadata attached to a task. The file bytes
// themselves live in an external storage backend; only the record is
// kept here.
type TaskAttachment struct {
	ID          string    `json:"id" db:"id"`
	TaskID      string    `json:"task_id" db:"task_id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	StorageKey  string    `json:"storage_key" db:"storage_key"`
	UploadedBy  string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
