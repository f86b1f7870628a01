package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workboard/internal/model"
)

// CreateUser inserts a new user. Generates a UUID if ID is empty.
// Emails are stored lowercase so lookups are case-insensitive.
func (s *SQLiteStore) CreateUser(ctx context.Context, u model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, super_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.Name,
		u.PasswordHash, boolToInt(u.SuperAdmin), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Email, err)
	}
	return nil
}

// GetUserByID retrieves a single user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.getOne(ctx, &u, "SELECT * FROM users WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a single user by email (case-insensitive).
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.getOne(ctx, &u,
		"SELECT * FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &u, nil
}

// UpdateUserPassword replaces a user's password hash.
func (s *SQLiteStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE id = ?",
		passwordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("updating password of user %s: %w", userID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSession inserts a new login session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess model.Session) error {
	if sess.Token == "" {
		sess.Token = uuid.New().String()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.ExpiresAt.UTC(), sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	if err := s.getOne(ctx, &sess, "SELECT * FROM sessions WHERE token = ?", token); err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes a session by token.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CreateWorkspace inserts a new workspace. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, w model.Workspace) error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("workspace name must not be empty")
	}
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Slug == "" {
		w.Slug = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(w.Name), " ", "-"))
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, slug, created_at)
		VALUES (?, ?, ?, ?)`,
		w.ID, w.Name, w.Slug, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating workspace %s: %w", w.Name, err)
	}
	return nil
}

// GetWorkspaceByID retrieves a single workspace by ID.
func (s *SQLiteStore) GetWorkspaceByID(ctx context.Context, id string) (*model.Workspace, error) {
	var w model.Workspace
	if err := s.getOne(ctx, &w, "SELECT * FROM workspaces WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("getting workspace %s: %w", id, err)
	}
	return &w, nil
}

// AddMember adds a user to a workspace. Generates a UUID if ID is empty.
func (s *SQLiteStore) AddMember(ctx context.Context, m model.Member) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Role == "" {
		m.Role = model.RoleMember
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, workspace_id, user_id, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.WorkspaceID, m.UserID, m.DisplayName, m.Role, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("adding member to workspace %s: %w", m.WorkspaceID, err)
	}
	return nil
}

// GetMember retrieves the membership record for a user in a workspace.
func (s *SQLiteStore) GetMember(ctx context.Context, workspaceID, userID string) (*model.Member, error) {
	var m model.Member
	err := s.getOne(ctx, &m,
		"SELECT * FROM members WHERE workspace_id = ? AND user_id = ?",
		workspaceID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting member %s in workspace %s: %w", userID, workspaceID, err)
	}
	return &m, nil
}

// GetMembers retrieves all members of a workspace ordered by display name.
func (s *SQLiteStore) GetMembers(ctx context.Context, workspaceID string) ([]model.Member, error) {
	var members []model.Member
	err := s.db.SelectContext(ctx, &members,
		"SELECT * FROM members WHERE workspace_id = ? ORDER BY display_name",
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying members of workspace %s: %w", workspaceID, err)
	}
	return members, nil
}
