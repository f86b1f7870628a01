package httpapi

import "net/http"

// The cron handlers assume routeCron already enforced super-admin.

func (s *Server) handleRoutinaryStatus(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "scheduler not running")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.RoutinaryStatus())
}

func (s *Server) handleRoutinaryRun(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "scheduler not running")
		return
	}
	result, err := s.scheduler.RunRoutinary(r.Context())
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "running routinary job"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleOverdueStatus(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "scheduler not running")
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.OverdueStatus())
}

func (s *Server) handleOverdueRun(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "scheduler not running")
		return
	}
	result, err := s.scheduler.RunOverdue(r.Context())
	if err != nil {
		s.writeAPIError(w, s.storeError(err, "running overdue sweep"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
