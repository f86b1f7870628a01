package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/workboard/internal/model"
	"github.com/nhle/workboard/internal/store"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	services, err := s.store.GetServices(r.Context(), rc.workspaceID)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing services"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

// handleCreateService creates a service; only workspace admins may.
// A routinary service must carry a frequency and start date, from
// which the first run date is derived.
func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	if !rc.member.IsAdmin() {
		s.writeError(w, http.StatusForbidden, "forbidden", "admin role required")
		return
	}

	var req struct {
		Name               string     `json:"name"`
		Description        string     `json:"description"`
		IsRoutinary        bool       `json:"is_routinary"`
		RoutinaryFrequency *string    `json:"routinary_frequency"`
		RoutinaryStartDate *time.Time `json:"routinary_start_date"`
		ChecklistTemplate  []string   `json:"checklist_template"`
	}
	if apiErr := s.decodeJSON(w, r, &req); apiErr != nil {
		s.writeAPIError(w, apiErr)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.writeError(w, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	svc := model.Service{
		ID:                uuid.New().String(),
		WorkspaceID:       rc.workspaceID,
		Name:              req.Name,
		Description:       req.Description,
		IsRoutinary:       req.IsRoutinary,
		ChecklistTemplate: req.ChecklistTemplate,
	}
	if req.IsRoutinary {
		if req.RoutinaryFrequency == nil || req.RoutinaryStartDate == nil {
			s.writeError(w, http.StatusBadRequest, "validation_error",
				"routinary services require routinary_frequency and routinary_start_date")
			return
		}
		freq := model.RoutinaryFrequency(*req.RoutinaryFrequency)
		if !freq.Valid() {
			s.writeError(w, http.StatusBadRequest, "validation_error",
				"unknown frequency "+*req.RoutinaryFrequency)
			return
		}
		start := req.RoutinaryStartDate.UTC()
		svc.RoutinaryFrequency = &freq
		svc.RoutinaryStartDate = &start
		svc.RoutinaryNextRunDate = &start
	}

	if err := s.store.CreateService(r.Context(), svc); err != nil {
		s.writeAPIError(w, s.storeError(err, "creating service"))
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	members, err := s.store.GetMembers(r.Context(), rc.workspaceID)
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "listing members"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (s *Server) handleToggleChecklistItem(w http.ResponseWriter, r *http.Request, rc *requestContext, itemID string) {
	if err := s.store.ToggleChecklistItem(r.Context(), itemID, rc.workspaceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not_found", "checklist item not found")
			return
		}
		s.writeAPIError(w, s.storeError(err, "toggling checklist item"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request, rc *requestContext) {
	stats, err := s.store.GetWorkspaceStats(r.Context(), rc.workspaceID, time.Now().UTC())
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "computing workspace stats"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
