package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// resetTokenTTL bounds how long a password-reset token stays valid.
const resetTokenTTL = time.Hour

// resetTokenPrefix namespaces reset tokens inside the sessions table
// so a reset token can never be replayed as a login session.
const resetTokenPrefix = "pwreset:"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		s.writeAPIError(w, s.storeError(err, "looking up user"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	sess := model.Session{
		Token:     uuid.New().String(),
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		s.writeAPIError(w, s.storeError(err, "creating session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, apiErr := s.authenticate(r)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := s.store.DeleteSession(r.Context(), strings.TrimSpace(token)); err != nil {
		s.writeAPIError(w, s.storeError(err, "deleting session"))
		return
	}

	s.logger.Info("user logged out", zap.String("user", user.ID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePasswordResetRequest is rate-limited to one request per email
// per window. The response never reveals whether the account exists.
func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	if !s.limiter.Allow(email) {
		remaining := s.limiter.RemainingTime(email).Round(time.Minute)
		s.writeError(w, http.StatusTooManyRequests, "rate_limited",
			fmt.Sprintf("a reset was already requested; try again in %s", remaining))
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.limiter.Reset(email)
			s.writeAPIError(w, s.storeError(err, "looking up user"))
			return
		}
		// Unknown address: same response, nothing sent.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	token := resetTokenPrefix + uuid.New().String()
	sess := model.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
	}
	if err := s.store.CreateSession(r.Context(), sess); err != nil {
		s.limiter.Reset(email)
		s.writeAPIError(w, s.storeError(err, "creating reset token"))
		return
	}

	if s.mailer != nil {
		if err := s.mailer.SendPasswordReset(user.Email, token); err != nil {
			// Refund the charge: a failed send must not consume the
			// user's quota for the window.
			s.limiter.Reset(email)
			s.logger.Error("password reset send failed",
				zap.String("user", user.ID), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "internal_error", "could not send reset email")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if !strings.HasPrefix(req.Token, resetTokenPrefix) || len(req.NewPassword) < 8 {
		s.writeError(w, http.StatusBadRequest, "validation_error",
			"valid reset token and a password of at least 8 characters are required")
		return
	}

	sess, err := s.store.GetSession(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "unknown reset token")
			return
		}
		s.writeAPIError(w, s.storeError(err, "resolving reset token"))
		return
	}
	if sess.Expired(time.Now().UTC()) {
		s.writeError(w, http.StatusBadRequest, "validation_error", "reset token expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "hashing password"))
		return
	}
	if err := s.store.UpdateUserPassword(r.Context(), sess.UserID, string(hash)); err != nil {
		s.writeAPIError(w, s.storeError(err, "updating password"))
		return
	}

	// Single use.
	if err := s.store.DeleteSession(r.Context(), req.Token); err != nil {
		s.logger.Warn("deleting used reset token failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
