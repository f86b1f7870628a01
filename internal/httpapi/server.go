// Package httpapi exposes the JSON API: auth, workspace-scoped task
// and notification operations, and the super-admin cron endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/mailer"
	"github.com/nhle/workboard/internal/notify"
	"github.com/nhle/workboard/internal/ratelimit"
	"github.com/nhle/workboard/internal/scheduler"
	"github.com/nhle/workboard/internal/store"
)

// Deps carries the collaborators a Server needs. Store is required;
// nil optional fields fall back to inert defaults.
type Deps struct {
	Store        store.Store
	Limiter      *ratelimit.Limiter
	Notifier     *notify.Notifier
	Hub          *notify.Hub
	Scheduler    *scheduler.Scheduler
	Mailer       *mailer.Mailer
	Logger       *zap.Logger
	MaxBodyBytes int64
	SessionTTL   time.Duration
}

// Server routes and handles all HTTP API requests.
type Server struct {
	store        store.Store
	limiter      *ratelimit.Limiter
	notifier     *notify.Notifier
	hub          *notify.Hub
	scheduler    *scheduler.Scheduler
	mailer       *mailer.Mailer
	logger       *zap.Logger
	maxBodyBytes int64
	sessionTTL   time.Duration
}

// NewServer creates a Server from its dependencies.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New(1, 24*time.Hour)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewNotifier(deps.Store, deps.Hub, deps.Logger)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 7 * 24 * time.Hour
	}
	return &Server{
		store:        deps.Store,
		limiter:      deps.Limiter,
		notifier:     deps.Notifier,
		hub:          deps.Hub,
		scheduler:    deps.Scheduler,
		mailer:       deps.Mailer,
		logger:       deps.Logger,
		maxBodyBytes: deps.MaxBodyBytes,
		sessionTTL:   deps.SessionTTL,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}

	switch parts[1] {
	case "auth":
		s.routeAuth(w, r, parts)
	case "cron":
		s.routeCron(w, r, parts)
	case "workspaces":
		s.routeWorkspace(w, r, parts)
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// routeAuth handles /v1/auth/*.
func (s *Server) routeAuth(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) < 3 {
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	switch {
	case len(parts) == 3 && parts[2] == "login":
		s.handleLogin(w, r)
	case len(parts) == 3 && parts[2] == "logout":
		s.handleLogout(w, r)
	case len(parts) == 3 && parts[2] == "password-reset":
		s.handlePasswordResetRequest(w, r)
	case len(parts) == 4 && parts[2] == "password-reset" && parts[3] == "confirm":
		s.handlePasswordResetConfirm(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// routeCron handles /v1/cron/* (super-admin only).
func (s *Server) routeCron(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 3 {
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}

	user, apiErr := s.authenticate(r)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if !user.SuperAdmin {
		s.writeError(w, http.StatusForbidden, "forbidden", "super-admin access required")
		return
	}

	switch {
	case parts[2] == "routinary" && r.Method == http.MethodGet:
		s.handleRoutinaryStatus(w, r)
	case parts[2] == "routinary" && r.Method == http.MethodPost:
		s.handleRoutinaryRun(w, r)
	case parts[2] == "overdue" && r.Method == http.MethodGet:
		s.handleOverdueStatus(w, r)
	case parts[2] == "overdue" && r.Method == http.MethodPost:
		s.handleOverdueRun(w, r)
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// routeWorkspace handles /v1/workspaces/{id}/... after resolving the
// caller's membership.
func (s *Server) routeWorkspace(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) < 4 {
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}
	workspaceID := parts[2]

	user, apiErr := s.authenticate(r)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	member, apiErr := s.requireMember(r, user, workspaceID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	rc := &requestContext{user: user, member: member, workspaceID: workspaceID}

	rest := parts[3:]
	switch {
	case rest[0] == "tasks":
		s.routeTasks(w, r, rc, rest[1:])
	case rest[0] == "notifications":
		s.routeNotifications(w, r, rc, rest[1:])
	case rest[0] == "services" && len(rest) == 1 && r.Method == http.MethodGet:
		s.handleListServices(w, r, rc)
	case rest[0] == "services" && len(rest) == 1 && r.Method == http.MethodPost:
		s.handleCreateService(w, r, rc)
	case rest[0] == "members" && len(rest) == 1 && r.Method == http.MethodGet:
		s.handleListMembers(w, r, rc)
	case rest[0] == "checklist" && len(rest) == 3 && rest[2] == "toggle" && r.Method == http.MethodPost:
		s.handleToggleChecklistItem(w, r, rc, rest[1])
	case rest[0] == "analytics" && len(rest) == 1 && r.Method == http.MethodGet:
		s.handleAnalytics(w, r, rc)
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// readBody reads the request body under the configured size cap.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, *apiError) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &apiError{
				status:  http.StatusRequestEntityTooLarge,
				code:    "payload_too_large",
				message: "request body exceeds configured limit",
			}
		}
		return nil, &apiError{
			status:  http.StatusBadRequest,
			code:    "bad_request",
			message: "failed to read request body",
		}
	}
	return body, nil
}

// decodeJSON reads and unmarshals the request body into dst.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *apiError {
	body, apiErr := s.readBody(w, r)
	if apiErr != nil {
		return apiErr
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &apiError{
			status:  http.StatusBadRequest,
			code:    "bad_request",
			message: "invalid json body",
		}
	}
	return nil
}

// storeError maps persistence errors to the API taxonomy, logging
// anything unexpected. No internal detail reaches the client.
func (s *Server) storeError(err error, action string) *apiError {
	if errors.Is(err, store.ErrNotFound) {
		return &apiError{status: http.StatusNotFound, code: "not_found", message: action + ": not found"}
	}
	s.logger.Error("store operation failed", zap.String("action", action), zap.Error(err))
	return &apiError{status: http.StatusInternalServerError, code: "internal_error", message: "unexpected failure"}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}

func (s *Server) writeAPIError(w http.ResponseWriter, e *apiError) {
	s.writeError(w, e.status, e.code, e.message)
}
