package server

import (
	"net/http"
	"time"

	"github.com/closetapp/closetd/internal/common"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"uptime":  time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleSessionGet handles GET /api/session. Returns the current auth
// snapshot without triggering any network activity.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.State.Snapshot())
}

// handleSessionRestore handles POST /api/session/restore. Concurrent calls
// share one in-flight restore; every caller receives the settled snapshot.
func (s *Server) handleSessionRestore(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	snap := s.app.Coordinator.Restore(r.Context())
	WriteJSON(w, http.StatusOK, snap)
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	snap := s.app.Coordinator.Logout(r.Context())
	WriteJSON(w, http.StatusOK, snap)
}
