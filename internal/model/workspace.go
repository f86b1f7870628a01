package model

import "time"

// Member role constants.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Workspace is the top-level tenant boundary. Every service, task,
// message, and notification belongs to exactly one workspace.
type Workspace struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Member links a user to a workspace with a role and the display name
// used for mention resolution inside that workspace.
type Member struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Role        string    `json:"role" db:"role"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin reports whether the member holds the workspace admin role.
func (m Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}
