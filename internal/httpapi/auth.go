package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

// apiError is an error already mapped to an HTTP response.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string {
	return e.message
}

// requestContext carries the resolved identity for a
// workspace-scoped request.
type requestContext struct {
	user        *model.User
	member      *model.Member
	workspaceID string
}

// authenticate resolves the bearer session token to a user.
func (s *Server) authenticate(r *http.Request) (*model.User, *apiError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		// The websocket stream endpoint cannot set headers from a
		// browser; accept the token as a query parameter there.
		header = "Bearer " + r.URL.Query().Get("token")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "missing or invalid bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "missing or invalid bearer token"}
	}
	// Password-reset tokens share the sessions table but are not
	// login credentials; they only pass the reset-confirm endpoint.
	if strings.HasPrefix(token, resetTokenPrefix) {
		return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "invalid session"}
	}

	sess, err := s.store.GetSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "invalid session"}
		}
		return nil, s.storeError(err, "resolving session")
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "session expired"}
	}

	user, err := s.store.GetUserByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &apiError{status: http.StatusUnauthorized, code: "unauthorized", message: "invalid session"}
		}
		return nil, s.storeError(err, "resolving session user")
	}
	return user, nil
}

// requireMember resolves the user's membership in the workspace.
// Super-admins without a membership row are still rejected here:
// workspace data is member-only.
func (s *Server) requireMember(r *http.Request, user *model.User, workspaceID string) (*model.Member, *apiError) {
	member, err := s.store.GetMember(r.Context(), workspaceID, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &apiError{status: http.StatusForbidden, code: "forbidden", message: "not a member of this workspace"}
		}
		return nil, s.storeError(err, "resolving membership")
	}
	return member, nil
}
