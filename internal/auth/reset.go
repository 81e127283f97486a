package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
)

// ErrInvalidEmail rejects reset requests for strings that are not emails.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrRecoveryTokenExpired rejects a recovery token whose own expiry has
// already passed, without spending a network call.
var ErrRecoveryTokenExpired = errors.New("recovery token expired")

// RateLimitedError reports a blocked sensitive operation and when it may be
// retried.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %ds", e.RetryAfterSeconds)
}

// ResetService runs the password-reset flows behind their rate limiters.
// The two limiters are independent counters: exhausting one never affects
// the other.
type ResetService struct {
	gateway   interfaces.AuthGateway
	requests  *SlidingWindowLimiter
	attempts  *SlidingWindowLimiter
	telemetry interfaces.TelemetrySink
	logger    *common.Logger
	now       func() time.Time
}

// NewResetService creates the reset service with both limiters over the
// local store.
func NewResetService(gateway interfaces.AuthGateway, store interfaces.LocalStore, cfg *common.AuthConfig, telemetry interfaces.TelemetrySink, logger *common.Logger) *ResetService {
	return &ResetService{
		gateway:   gateway,
		requests:  NewResetRequestLimiter(store, logger, cfg),
		attempts:  NewResetAttemptLimiter(store, logger, cfg),
		telemetry: telemetry,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestReset asks the backend to send a recovery email. The attempt is
// recorded before the remote call so a failing upstream still burns an
// attempt; the limiter exists to blunt enumeration, not to meter successes.
func (s *ResetService) RequestReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if v := s.requests.Check(ctx, email); !v.Allowed {
		s.telemetry.LogEvent("reset_request_limited", map[string]any{"retry_after_s": v.RetryAfterSeconds})
		return &RateLimitedError{RetryAfterSeconds: v.RetryAfterSeconds}
	}
	s.requests.Record(ctx, email)

	if err := s.gateway.RequestPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	return nil
}

// ConfirmReset redeems a recovery token. Every attempt burns one slot in
// the token's window; a successful redemption clears only that window.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if v := s.attempts.Check(ctx, token); !v.Allowed {
		s.telemetry.LogEvent("reset_attempt_limited", map[string]any{"retry_after_s": v.RetryAfterSeconds})
		return &RateLimitedError{RetryAfterSeconds: v.RetryAfterSeconds}
	}
	s.attempts.Record(ctx, token)

	if recoveryTokenExpired(token, s.now()) {
		return ErrRecoveryTokenExpired
	}

	if err := s.gateway.ConfirmPasswordReset(ctx, token, newPassword); err != nil {
		return fmt.Errorf("reset confirm failed: %w", err)
	}

	s.attempts.Clear(ctx, token)
	s.telemetry.LogEvent("reset_confirmed", nil)
	return nil
}

// recoveryTokenExpired checks the recovery JWT's own exp claim without
// verifying the signature; the backend remains the authority. Tokens that
// do not parse as JWTs are left for the backend to judge.
func recoveryTokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
