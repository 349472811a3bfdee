// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"projsync/internal/logging"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
	"projsync/internal/session"
)

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// handleGetProjects handles GET /api/projects.
// Returns the registry snapshot ordered by ID.
func (s *Server) handleGetProjects(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("snapshot failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []registry.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleCreateProject handles POST /api/projects.
// Creates the directory when missing and registers it. Returns 201 on
// success, 400 for an empty or escaping path and 409 for a duplicate.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.engine.Add(r.Context(), req.Path, req.Name)
	switch {
	case errors.Is(err, registry.ErrEmptyPath), errors.Is(err, registry.ErrEmptyName), errors.Is(err, session.ErrOutsideRoot):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, registry.ErrDuplicatePath):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("add project failed", "path", req.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.events.Notify()
	writeJSON(w, http.StatusCreated, rec)
}

// handleDeleteProject handles DELETE /api/projects/{id}.
// Removes the record only; the directory stays on disk.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	err = s.engine.Remove(r.Context(), id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("remove project failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.events.Notify()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "removed"})
}

// handleScan handles GET /api/scan.
// Returns the current result sets without resolving them.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Reconcile(r.Context())
	if err != nil {
		s.logger.Warn("scan failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleReconcile handles POST /api/reconcile?policy=...&dry_run=1.
// Runs one unattended pass; without a policy parameter the configured
// policy is used.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	policy := s.engine.Policy()
	if raw := r.URL.Query().Get("policy"); raw != "" {
		p, err := reconcile.ParsePolicy(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}
	dryRun := isTrue(r.URL.Query().Get("dry_run"))

	report, err := s.engine.Pass(r.Context(), policy, dryRun)
	if err != nil {
		s.logger.Error("reconcile pass failed", "policy", policy.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if len(report.Outcomes) > 0 {
		s.events.Notify()
	}
	writeJSON(w, http.StatusOK, report)
}

// handleLogs handles GET /api/logs?scope=...&level=....
// Returns buffered entries, oldest first.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := logging.Filter(s.engine.Recent(), q.Get("scope"), q.Get("level"))
	writeJSON(w, http.StatusOK, entries)
}

func isTrue(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
