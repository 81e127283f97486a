package models

import "time"

// TokenPair is the opaque credential pair issued by the Closet backend.
// Tokens are passed through to the remote auth boundary and never inspected.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionBundle is the persisted session record, stored encrypted-at-rest.
// It is either entirely absent (logged out) or fully valid: the session
// store deletes anything that fails validation rather than returning a
// partial bundle.
type SessionBundle struct {
	Credentials       TokenPair    `json:"credentials"`
	LastAuthSuccessAt string       `json:"last_auth_success_at"`
	User              *UserProfile `json:"user,omitempty"`
	NeedsRefresh      bool         `json:"needs_refresh,omitempty"`
	HasOnboarded      *bool        `json:"has_onboarded,omitempty"`
}

// LastAuthSuccess parses the bundle's last-auth timestamp. An unparseable
// value means the bundle is corrupt.
func (b *SessionBundle) LastAuthSuccess() (time.Time, error) {
	return time.Parse(time.RFC3339, b.LastAuthSuccessAt)
}

// ExpiryTier records which fallback produced a token expiry.
type ExpiryTier string

const (
	TierAbsolute ExpiryTier = "absolute"
	TierRelative ExpiryTier = "relative"
	TierDefault  ExpiryTier = "default"
)

// TokenMetadata is derived from a session on every load and never persisted
// on its own.
type TokenMetadata struct {
	ExpiresAt int64      `json:"expires_at"` // epoch milliseconds
	TokenType string     `json:"token_type"`
	Tier      ExpiryTier `json:"tier"`
}

// RemoteSession is the session payload returned by the backend. Expiry
// fields are pointers because the backend is inconsistent about which it
// sends; values arrive as JSON numbers and must be validated before use.
type RemoteSession struct {
	Credentials TokenPair `json:"credentials"`
	TokenType   string    `json:"token_type,omitempty"`
	ExpiresAt   *float64  `json:"expires_at,omitempty"` // epoch seconds
	ExpiresIn   *float64  `json:"expires_in,omitempty"` // seconds from now
}

// UserProfile is the user record returned by the backend alongside a
// refreshed session.
type UserProfile struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	DisplayName  string `json:"display_name,omitempty"`
	HasOnboarded *bool  `json:"has_onboarded,omitempty"`
}

// RefreshResult is the successful outcome of a remote session refresh.
type RefreshResult struct {
	Session RemoteSession `json:"session"`
	User    UserProfile   `json:"user"`
}

// Reason is a short enumerated code explaining why the user is logged out.
// The app maps codes to display copy; raw errors never reach the UI.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNoSession      Reason = "no-session"
	ReasonSessionExpired Reason = "session-expired"
	ReasonRestoreStale   Reason = "restore-failed-stale"
	ReasonRestoreInvalid Reason = "restore-failed-invalid"
	ReasonRestoreError   Reason = "restore-failed-error"
	ReasonLogout         Reason = "logout"
)
