package model

import "time"

// NotificationType identifies what event produced a notification.
type NotificationType string

const (
	NotificationMention          NotificationType = "MENTION"
	NotificationTaskAssigned     NotificationType = "TASK_ASSIGNED"
	NotificationReviewerAssigned NotificationType = "REVIEWER_ASSIGNED"
	NotificationSystem           NotificationType = "SYSTEM"
)

// Valid reports whether the type is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMention, NotificationTaskAssigned, NotificationReviewerAssigned, NotificationSystem:
		return true
	}
	return false
}

// Notification is an alert surfaced to a single user about activity
// in a workspace. Immutable once created except for Read/ReadAt.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// WorkspaceID scopes the notification to a workspace.
	WorkspaceID string `json:"workspace_id" db:"workspace_id"`

	// RecipientID is the user this notification is for.
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	// Type identifies the event that produced this notification.
	Type NotificationType `json:"type" db:"type"`

	// Title is the short headline shown in the notification list.
	Title string `json:"title" db:"title"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// TaskID links to the originating task, if any.
	TaskID *string `json:"task_id,omitempty" db:"task_id"`

	// MessageID links to the originating task message, if any.
	MessageID *string `json:"message_id,omitempty" db:"message_id"`

	// MentionerID is the user whose message triggered a MENTION
	// notification, if any.
	MentionerID *string `json:"mentioner_id,omitempty" db:"mentioner_id"`

	// Read indicates whether the recipient has seen this notification.
	Read bool `json:"read" db:"read"`

	// ReadAt is when the notification was marked read, if it has been.
	ReadAt *time.Time `json:"read_at,omitempty" db:"read_at"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
