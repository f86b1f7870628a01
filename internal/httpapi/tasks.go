package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

func (s *Server) routeTasks(w http.ResponseWriter, r *http.Request, rc *requestContext, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.handleListTasks(w, r, rc)
	case len(rest) == 0 && r.Method == http.MethodPost:
		s.handleCreateTask(w, r, rc)
	case len(rest) == 1 && r.Method == http.MethodGet:
		s.handleGetTask(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "status" && r.Method == http.MethodPost:
		s.handleUpdateTaskStatus(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "assignee" && r.Method == http.MethodPost:
		s.handleSetAssignee(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "reviewer" && r.Method == http.MethodPost:
		s.handleSetReviewer(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "messages" && r.Method == http.MethodGet:
		s.handleListMessages(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "messages" && r.Method == http.MethodPost:
		s.handleCreateMessage(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "attachments" && r.Method == http.MethodGet:
		s.handleListAttachments(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "attachments" && r.Method == http.MethodPost:
		s.handleRegisterAttachment(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "checklist" && r.Method == http.MethodGet:
		s.handleListChecklist(w, r, rc, rest[0])
	case len(rest) == 2 && rest[1] == "checklist" && r.Method == http.MethodPost:
		s.handleAddChecklistItem(w, r, rc, rest[0])
	default:
		s.writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

// workspaceTask loads a task and verifies it belongs to the request's
// workspace. Cross-workspace IDs read as missing, never as forbidden.
func (s *Server) workspaceTask(r *http.Request, rc *requestContext, taskID string) (*model.Task, *apiError) {
	task, err := s.store.GetTaskByID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &apiError{status: http.StatusNotFound, code: "not_found", message: "task not found"}
		}
		return nil, s.storeError(err, "loading task")
	}
	if task.WorkspaceID != rc.workspaceID {
		return nil, &apiError{status: http.StatusNotFound, code: "not_found", message: "task not found"}
	}
	return task, nil
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		WorkspaceID: rc.workspaceID,
		SortBy:      q.Get("sortBy"),
		SortDesc:    q.Get("order") == "desc",
	}
	if v := q.Get("status"); v != "" {
		if !model.ValidTaskStatus(v) {
			s.writeError(w, http.StatusBadRequest, "validation_error", "unknown status "+v)
			return
		}
		filter.Status = &v
	}
	if v := q.Get("serviceId"); v != "" {
		filter.ServiceID = &v
	}
	if v := q.Get("assigneeId"); v != "" {
		filter.AssigneeID = &v
	}
	if v := q.Get("overdue"); v != "" {
		overdue := v == "true" || v == "1"
		filter.Overdue = &overdue
	}
	if v := q.Get("q"); v != "" {
		filter.Query = &v
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	tasks, err := s.store.GetTasks(r.Context(), filter)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing tasks"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	var req struct {
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		ServiceID   *string    `json:"service_id"`
		AssigneeID  *string    `json:"assignee_id"`
		DueDate     *time.Time `json:"due_date"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "title is required")
		return
	}
	if req.Status != "" && !model.ValidTaskStatus(req.Status) {
		s.writeError(w, http.StatusBadRequest, "validation_error", "unknown status "+req.Status)
		return
	}

	task := model.Task{
		WorkspaceID: rc.workspaceID,
		ServiceID:   req.ServiceID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		DueDate:     req.DueDate,
		CreatedBy:   rc.user.ID,
	}

	var assignee *model.Member
	if req.AssigneeID != nil {
		m, apiErr := s.workspaceMember(r, rc, *req.AssigneeID)
		if apiErr != nil {
			s.writeAPIError(w, apiErr)
			return
		}
		assignee = m
		task.AssigneeID = req.AssigneeID
	}

	if err := s.store.CreateTask(r.Context(), &task); err != nil {
		s.writeAPIError(w, s.storeError(err, "creating task"))
		return
	}

	if assignee != nil {
		s.notifier.TaskAssigned(r.Context(), task, *assignee, *rc.member)
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	var req struct {
		Status string `json:"status"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if !model.ValidTaskStatus(req.Status) {
		s.writeError(w, http.StatusBadRequest, "validation_error", "unknown status "+req.Status)
		return
	}

	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	if err := s.store.UpdateTaskStatus(r.Context(), task.ID, req.Status); err != nil {
		s.writeAPIError(w, s.storeError(err, "updating task status"))
		return
	}

	updated, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// workspaceMember loads a member row by ID and verifies the workspace.
func (s *Server) workspaceMember(r *http.Request, rc *requestContext, memberID string) (*model.Member, *apiError) {
	members, err := s.store.GetMembers(r.Context(), rc.workspaceID)
	if err != nil {
		return nil, s.storeError(err, "listing members")
	}
	for i := range members {
		if members[i].ID == memberID {
			return &members[i], nil
		}
	}
	return nil, &apiError{status: http.StatusNotFound, code: "not_found", message: "member not found in workspace"}
}

func (s *Server) handleSetAssignee(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	s.handleSetTaskMember(w, r, rc, taskID, false)
}

func (s *Server) handleSetReviewer(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	s.handleSetTaskMember(w, r, rc, taskID, true)
}

// handleSetTaskMember sets or clears the assignee or reviewer of a
// task, notifying the affected member.
func (s *Server) handleSetTaskMember(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string, reviewer bool) {
	var req struct {
		MemberID *string `json:"member_id"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	var target *model.Member
	if req.MemberID != nil {
		target, apiErr = s.workspaceMember(r, rc, *req.MemberID)
		if apiErr != nil {
			s.writeAPIError(w, apiErr)
			return
		}
	}

	var err error
	if reviewer {
		err = s.store.SetTaskReviewer(r.Context(), task.ID, req.MemberID)
	} else {
		err = s.store.SetTaskAssignee(r.Context(), task.ID, req.MemberID)
	}
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "assigning task"))
		return
	}

	if target != nil {
		if reviewer {
			s.notifier.ReviewerAssigned(r.Context(), *task, *target, *rc.member)
		} else {
			s.notifier.TaskAssigned(r.Context(), *task, *target, *rc.member)
		}
	}

	updated, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	messages, err := s.store.GetMessages(r.Context(), task.ID, limit, offset)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing messages"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleCreateMessage posts a chat message on a task, then resolves
// @-mentions and fans out MENTION notifications. Mention failures
// never fail the message itself.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	var req struct {
		Content string `json:"content"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "content is required")
		return
	}

	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	// The store accepts the message by value, so assign identity here
	// to echo it in the response and thread it into mention records.
	msg := model.TaskMessage{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		WorkspaceID: rc.workspaceID,
		AuthorID:    rc.member.ID,
		Content:     req.Content,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.writeAPIError(w, s.storeError(err, "creating message"))
		return
	}

	mentioned := 0
	members, err := s.store.GetMembers(r.Context(), rc.workspaceID)
	if err != nil {
		// Mention fan-out is a side effect; the message stands.
		s.logger.Warn("listing members for mention fan-out failed", zap.Error(err))
	} else {
		mentioned = s.notifier.MessageMentions(r.Context(), msg, *task, *rc.member, members)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":           msg,
		"mentions_notified": mentioned,
	})
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	attachments, err := s.store.GetAttachments(r.Context(), task.ID)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing attachments"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

// handleRegisterAttachment records attachment metadata after the file
// bytes were placed in the external storage backend.
func (s *Server) handleRegisterAttachment(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	var req struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
		StorageKey  string `json:"storage_key"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.StorageKey) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "file_name and storage_key are required")
		return
	}

	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	attachment := model.TaskAttachment{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		WorkspaceID: rc.workspaceID,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		StorageKey:  req.StorageKey,
		UploadedBy:  rc.user.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateAttachment(r.Context(), attachment); err != nil {
		s.writeAPIError(w, s.storeError(err, "registering attachment"))
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *Server) handleListChecklist(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	items, err := s.store.GetChecklistItems(r.Context(), task.ID)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing checklist items"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAddChecklistItem(w http.ResponseWriter, r *http.Request, rc *requestContext, taskID string) {
	var req struct {
		Text      string `json:"text"`
		SortOrder int    `json:"sort_order"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "text is required")
		return
	}

	task, apiErr := s.workspaceTask(r, rc, taskID)
	if apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}

	item := model.ChecklistItem{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		Text:      req.Text,
		SortOrder: req.SortOrder,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddChecklistItem(r.Context(), item); err != nil {
		s.writeAPIError(w, s.storeError(err, "adding checklist item"))
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
