package server

import "net/http"

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Session lifecycle
	mux.HandleFunc("/api/session", s.handleSessionGet)
	mux.HandleFunc("/api/session/restore", s.handleSessionRestore)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)

	// Password reset
	mux.HandleFunc("/api/auth/reset/request", s.handleResetRequest)
	mux.HandleFunc("/api/auth/reset/confirm", s.handleResetConfirm)
}
