package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

func (s *Server) routeNotifications(w http.ResponseWriter, r *http.Request, rc *requestContext, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleListNotifications(w, r, rc)
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleCreateNotification(w, r, rc)
	case len(rest) == 1 && rest[0] == "read" && r.Method == http.MethodPost:
		s.handleMarkNotificationsRead(w, r, rc)
	case len(rest) == 1 && rest[0] == "stream" && r.Method == http.MethodGet:
		s.handleNotificationStream(w, r, rc)
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	q := r.URL.Query()
	filter := store.NotificationFilter{
		WorkspaceID: rc.workspaceID,
		RecipientID: rc.user.ID,
		UnreadOnly:  q.Get("unread") == "true" || q.Get("unread") == "1",
	}
	if v := q.Get("type"); v != "" {
		t := model.NotificationType(v)
		if !t.Valid() {
			s.writeError(w, http.StatusBadRequest, "validation_error", "unknown notification type "+v)
			return
		}
		filter.Type = &t
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	notifications, total, err := s.store.GetNotifications(r.Context(), filter)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing notifications"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"total":         total,
	})
}

// handleCreateNotification lets a member send a SYSTEM notification to
// another member of the same workspace.
func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	var req struct {
		RecipientID string  `json:"recipient_id"`
		Type        string  `json:"type"`
		Title       string  `json:"title"`
		Message     string  `json:"message"`
		TaskID      *string `json:"task_id"`
		MessageID   *string `json:"message_id"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	nType := model.NotificationType(req.Type)
	if req.Type == "" {
		nType = model.NotificationSystem
	}
	if !nType.Valid() {
		s.writeError(w, http.StatusBadRequest, "validation_error", "unknown notification type "+req.Type)
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.RecipientID) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "recipient_id and title are required")
		return
	}
	if _, err := s.store.GetMember(r.Context(), rc.workspaceID, req.RecipientID); err != nil {
		s.writeAPIError(w, s.storeError(err, "resolving recipient"))
		return
	}

	n := model.Notification{
		WorkspaceID: rc.workspaceID,
		RecipientID: req.RecipientID,
		Type:        nType,
		Title:       req.Title,
		Message:     req.Message,
		TaskID:      req.TaskID,
		MessageID:   req.MessageID,
		MentionerID: &rc.user.ID,
	}
	created, err := s.notifier.Deliver(r.Context(), n)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "creating notification"))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleMarkNotificationsRead accepts exactly one of three targets:
// an explicit id list, a task id, or mark_all.
func (s *Server) handleMarkNotificationsRead(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	var req struct {
		NotificationIDs []string `json:"notification_ids"`
		TaskID          *string  `json:"task_id"`
		MarkAll         bool     `json:"mark_all"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	now := time.Now().UTC()
	var (
		updated int64
		err     error
	)
	switch {
	case req.MarkAll:
		updated, err = s.store.MarkAllNotificationsRead(r.Context(), rc.user.ID, rc.workspaceID, now)
	case req.TaskID != nil:
		updated, err = s.store.MarkTaskNotificationsRead(r.Context(), rc.user.ID, *req.TaskID, now)
	case len(req.NotificationIDs) > 0:
		updated, err = s.store.MarkNotificationsRead(r.Context(), rc.user.ID, req.NotificationIDs, now)
	default:
		s.writeError(w, http.StatusBadRequest, "validation_error",
			"one of notification_ids, task_id, or mark_all is required")
		return
	}
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "marking notifications read"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

// handleNotificationStream upgrades to a websocket and relays the
// caller's live notifications until the client goes away.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	if s.hub == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "live stream not available")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := s.hub.Subscribe(rc.user.ID)
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case n, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if n.WorkspaceID != rc.workspaceID {
				continue
			}
			if err := wsjson.Write(ctx, conn, n); err != nil {
				return
			}
		}
	}
}
