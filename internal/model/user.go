package model

import "time"

// User is a registered account. Workspace-specific identity lives on
// Member; User carries only the global login identity.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	SuperAdmin   bool      `json:"super_admin" db:"super_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session is a bearer-token login session.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
