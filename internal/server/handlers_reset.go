package server

import (
	"errors"
	"net/http"

	"github.com/closetapp/closetd/internal/auth"
)

type resetRequestPayload struct {
	Email string `json:"email"`
}

type resetConfirmPayload struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// handleResetRequest handles POST /api/auth/reset/request. Responds 202 on
// acceptance whether or not the email maps to an account.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var payload resetRequestPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}

	err := s.app.Reset.RequestReset(r.Context(), payload.Email)
	if err == nil {
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	var limited *auth.RateLimitedError
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		WriteError(w, http.StatusBadRequest, "A valid email address is required")
	case errors.As(err, &limited):
		writeRateLimited(w, limited)
	default:
		s.logger.Error().Err(err).Msg("Password reset request failed upstream")
		WriteError(w, http.StatusBadGateway, "Reset request could not be delivered")
	}
}

// handleResetConfirm handles POST /api/auth/reset/confirm.
func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var payload resetConfirmPayload
	if !DecodeJSON(w, r, &payload) {
		return
	}
	if payload.Token == "" || payload.NewPassword == "" {
		WriteError(w, http.StatusBadRequest, "token and new_password are required")
		return
	}

	err := s.app.Reset.ConfirmReset(r.Context(), payload.Token, payload.NewPassword)
	if err == nil {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
		return
	}

	var limited *auth.RateLimitedError
	switch {
	case errors.As(err, &limited):
		writeRateLimited(w, limited)
	case errors.Is(err, auth.ErrRecoveryTokenExpired):
		WriteErrorWithCode(w, http.StatusBadRequest, "Recovery link has expired, request a new one", "token_expired")
	default:
		s.logger.Error().Err(err).Msg("Password reset confirmation failed upstream")
		WriteError(w, http.StatusBadGateway, "Reset confirmation could not be delivered")
	}
}

func writeRateLimited(w http.ResponseWriter, limited *auth.RateLimitedError) {
	WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":               "Too many attempts, try again later",
		"code":                "rate_limited",
		"retry_after_seconds": limited.RetryAfterSeconds,
	})
}
