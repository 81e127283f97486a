package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/telemetry"
)

func newTestResetService(store *memStore, gateway *fakeGateway) *ResetService {
	cfg := common.NewDefaultConfig()
	return NewResetService(gateway, store, &cfg.Auth, telemetry.Noop(), common.NewSilentLogger())
}

// signedRecoveryToken builds a JWT with the given exp. The signature is
// irrelevant; only the claim is read client-side.
func signedRecoveryToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "reset",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func TestRequestReset_RejectsNonEmail(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestResetService(newMemStore(), gateway)

	err := s.RequestReset(context.Background(), "not-an-email")
	if !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
	if gateway.requestCalls.Load() != 0 {
		t.Error("invalid email reached the backend")
	}
}

func TestRequestReset_LimitsPerEmail(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	s := newTestResetService(newMemStore(), gateway)

	for i := 0; i < 3; i++ {
		if err := s.RequestReset(ctx, "user@closetapp.io"); err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
	}

	err := s.RequestReset(ctx, "user@closetapp.io")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("4th request err = %v, want RateLimitedError", err)
	}
	if limited.RetryAfterSeconds <= 0 || limited.RetryAfterSeconds > 3600 {
		t.Errorf("RetryAfterSeconds = %d, want within the hour window", limited.RetryAfterSeconds)
	}
	if gateway.requestCalls.Load() != 3 {
		t.Errorf("backend called %d times, want 3", gateway.requestCalls.Load())
	}
}

func TestRequestReset_NormalizedVariantsShareLimit(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	s := newTestResetService(newMemStore(), gateway)

	s.RequestReset(ctx, "user@closetapp.io")
	s.RequestReset(ctx, " USER@closetapp.io ")
	s.RequestReset(ctx, "User@Closetapp.IO")

	err := s.RequestReset(ctx, "user@closetapp.io")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("casing variants did not share a window, err = %v", err)
	}
}

func TestRequestReset_UpstreamFailureStillBurnsAttempt(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{requestErr: errors.New("503 upstream")}
	store := newMemStore()
	s := newTestResetService(store, gateway)

	for i := 0; i < 3; i++ {
		if err := s.RequestReset(ctx, "user@closetapp.io"); err == nil {
			t.Fatal("expected upstream error to surface")
		}
	}

	err := s.RequestReset(ctx, "user@closetapp.io")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("failed attempts did not count, err = %v", err)
	}
}

func TestConfirmReset_ExpiredTokenShortCircuits(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestResetService(newMemStore(), gateway)

	token := signedRecoveryToken(t, time.Now().Add(-time.Minute))
	err := s.ConfirmReset(context.Background(), token, "new-password")
	if !errors.Is(err, ErrRecoveryTokenExpired) {
		t.Fatalf("err = %v, want ErrRecoveryTokenExpired", err)
	}
	if gateway.confirmCalls.Load() != 0 {
		t.Error("expired token reached the backend")
	}
}

func TestConfirmReset_OpaqueTokenGoesToBackend(t *testing.T) {
	gateway := &fakeGateway{}
	s := newTestResetService(newMemStore(), gateway)

	if err := s.ConfirmReset(context.Background(), "not-a-jwt-token", "new-password"); err != nil {
		t.Fatalf("opaque token rejected client-side: %v", err)
	}
	if gateway.confirmCalls.Load() != 1 {
		t.Error("opaque token not forwarded to the backend")
	}
}

func TestConfirmReset_LimitsPerToken(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{confirmErr: errors.New("token mismatch")}
	s := newTestResetService(newMemStore(), gateway)

	token := signedRecoveryToken(t, time.Now().Add(time.Hour))
	for i := 0; i < 5; i++ {
		if err := s.ConfirmReset(ctx, token, "guess"); err == nil {
			t.Fatalf("attempt %d unexpectedly succeeded", i+1)
		}
	}

	err := s.ConfirmReset(ctx, token, "guess")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("6th attempt err = %v, want RateLimitedError", err)
	}
	if limited.RetryAfterSeconds <= 0 || limited.RetryAfterSeconds > 900 {
		t.Errorf("RetryAfterSeconds = %d, want within the 15 minute window", limited.RetryAfterSeconds)
	}
	if gateway.confirmCalls.Load() != 5 {
		t.Errorf("backend called %d times, want 5", gateway.confirmCalls.Load())
	}
}

func TestConfirmReset_SuccessClearsOnlyAttemptWindow(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{}
	store := newMemStore()
	s := newTestResetService(store, gateway)

	// Exhaust the request limiter for an unrelated email first.
	for i := 0; i < 3; i++ {
		s.RequestReset(ctx, "user@closetapp.io")
	}

	token := signedRecoveryToken(t, time.Now().Add(time.Hour))
	if err := s.ConfirmReset(ctx, token, "new-password"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// The attempt window is gone, the request window untouched.
	if !s.attempts.Check(ctx, token).Allowed {
		t.Error("attempt window not cleared on success")
	}
	var limited *RateLimitedError
	if err := s.RequestReset(ctx, "user@closetapp.io"); !errors.As(err, &limited) {
		t.Error("request window was cleared by an unrelated confirm")
	}
}

func TestResetLimiters_IndependentNamespaces(t *testing.T) {
	ctx := context.Background()
	gateway := &fakeGateway{confirmErr: errors.New("nope")}
	store := newMemStore()
	s := newTestResetService(store, gateway)

	// Same string as both email and token must not collide.
	const shared = "weird@value"
	s.RequestReset(ctx, shared)
	s.ConfirmReset(ctx, shared, "pw")

	if store.len() != 2 {
		t.Errorf("expected 2 independent windows, got %d", store.len())
	}
}
