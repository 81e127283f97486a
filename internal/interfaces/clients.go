package interfaces

import (
	"context"

	"github.com/closetapp/closetd/internal/models"
)

// AuthGateway is the remote auth boundary of the Closet backend.
// Errors may or may not carry an HTTP status; callers classify them
// conservatively.
type AuthGateway interface {
	// Refresh exchanges the stored credential pair for a fresh session.
	Refresh(ctx context.Context, creds models.TokenPair) (*models.RefreshResult, error)

	// RequestPasswordReset asks the backend to email a recovery link.
	RequestPasswordReset(ctx context.Context, email string) error

	// ConfirmPasswordReset redeems a one-time recovery token.
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error

	// SignOut revokes the session server-side. Best effort; local logout
	// proceeds regardless.
	SignOut(ctx context.Context, creds models.TokenPair) error
}
