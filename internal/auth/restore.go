// Package auth implements the authentication session lifecycle: encrypted
// session persistence, token-expiry derivation, the cold-start restore
// state machine with its offline trust window, and the sliding-window rate
// limiting around password reset.
package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/models"
	"github.com/closetapp/closetd/internal/state"
)

const (
	// DefaultRefreshTimeout bounds the refresh race so restore always
	// settles even when the backend never answers.
	DefaultRefreshTimeout = 8 * time.Second

	// DefaultTrustWindow is how long after the last successful auth a
	// cached session is trusted without a live refresh.
	DefaultTrustWindow = 7 * 24 * time.Hour
)

// Coordinator runs the cold-start restore sequence: load the stored
// bundle, attempt a bounded remote refresh, and settle the state container
// in exactly one of authenticated, offline-trusted, or logged out.
//
// Restore is idempotent per in-flight run: concurrent callers share a
// single execution. The guard lives on the coordinator instance, not in
// package state, so tests get a fresh one each time.
type Coordinator struct {
	sessions  *SessionStore
	expiry    *Calculator
	gateway   interfaces.AuthGateway
	state     *state.Container
	telemetry interfaces.TelemetrySink
	logger    *common.Logger

	refreshTimeout time.Duration
	trustWindow    time.Duration
	now            func() time.Time
	group          singleflight.Group
}

// CoordinatorOption configures the coordinator
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout overrides the bound on the remote refresh.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.refreshTimeout = d
	}
}

// WithTrustWindow overrides the offline trust window.
func WithTrustWindow(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.trustWindow = d
	}
}

// WithClock injects a clock (for tests).
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a restore coordinator.
func NewCoordinator(sessions *SessionStore, expiry *Calculator, gateway interfaces.AuthGateway, container *state.Container, telemetry interfaces.TelemetrySink, logger *common.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		sessions:       sessions,
		expiry:         expiry,
		gateway:        gateway,
		state:          container,
		telemetry:      telemetry,
		logger:         logger,
		refreshTimeout: DefaultRefreshTimeout,
		trustWindow:    DefaultTrustWindow,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore runs the restore sequence and returns the terminal snapshot.
// Concurrent callers within one in-flight run share a single execution
// (and its result); the expensive sequence runs at most once no matter how
// many mount points invoke it. Never returns an error: every path writes a
// terminal state.
func (c *Coordinator) Restore(ctx context.Context) state.Snapshot {
	v, _, _ := c.group.Do("restore", func() (interface{}, error) {
		return c.run(ctx), nil
	})
	return v.(state.Snapshot)
}

// run executes one restore, recovering from panics and always dropping the
// hydrating flag before returning.
func (c *Coordinator) run(ctx context.Context) (snap state.Snapshot) {
	defer func() {
		// Unconditional: UI routing is gated solely on this flag.
		c.state.SetHydrating(false)
		snap = c.state.Snapshot()
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("session restore panic: %v", rec)
			c.logger.Error().Err(err).Msg("Session restore failed unexpectedly")
			c.telemetry.LogError(err, "restore_panic", nil)
			c.sessions.Clear(ctx)
			c.state.SetUnauthenticated(models.ReasonRestoreError)
		}
	}()

	c.state.SetHydrating(true)
	c.restore(ctx)
	return
}

func (c *Coordinator) restore(ctx context.Context) {
	bundle := c.sessions.Load(ctx)
	if bundle == nil {
		// A nil Load may still leave a record it could not vouch for.
		c.sessions.Clear(ctx)
		c.state.SetUnauthenticated(models.ReasonNoSession)
		c.telemetry.LogEvent("restore_no_session", nil)
		return
	}

	// Bound the refresh so restore settles even if the call never resolves.
	// A deadline expiry is classified exactly like a network fault; the
	// orphaned call is abandoned, not awaited.
	refreshCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	result, err := c.gateway.Refresh(refreshCtx, bundle.Credentials)
	if err == nil {
		c.settleRefreshed(ctx, result)
		return
	}

	if ClassifyRefreshError(err) == FailurePermanent {
		c.logger.Info().Err(err).Msg("Stored session rejected by backend")
		c.sessions.Clear(ctx)
		c.state.SetUnauthenticated(models.ReasonSessionExpired)
		c.telemetry.LogEvent("restore_session_rejected", nil)
		return
	}

	c.logger.Debug().Err(err).Msg("Refresh unreachable, applying trust window")
	c.settleOffline(ctx, bundle)
}

// settleRefreshed persists the refreshed session and writes the
// authenticated outcome in one transition.
func (c *Coordinator) settleRefreshed(ctx context.Context, result *models.RefreshResult) {
	meta := c.expiry.Derive(&result.Session)
	user := result.User
	c.sessions.Save(ctx, result.Session.Credentials, c.now(), &user, user.HasOnboarded)
	c.state.SetAuthenticated(&user, &meta, false)
	c.telemetry.LogEvent("restore_refreshed", map[string]any{"tier": string(meta.Tier)})
}

// settleOffline applies the trust window to a bundle that could not be
// refreshed for transient reasons.
func (c *Coordinator) settleOffline(ctx context.Context, bundle *models.SessionBundle) {
	last, err := bundle.LastAuthSuccess()
	if err != nil {
		// Load validated this; reaching here means the bundle mutated
		// underneath us. Treat as corrupt.
		c.sessions.Clear(ctx)
		c.state.SetUnauthenticated(models.ReasonRestoreInvalid)
		return
	}

	age := c.now().Sub(last)
	if age > c.trustWindow {
		c.sessions.Clear(ctx)
		c.state.SetUnauthenticated(models.ReasonRestoreStale)
		c.telemetry.LogEvent("restore_session_stale", map[string]any{"age_hours": int(age.Hours())})
		return
	}

	user := c.userFromBundle(bundle)
	if user == nil {
		// Within the window but nothing to recover the user from.
		c.sessions.Clear(ctx)
		c.state.SetUnauthenticated(models.ReasonRestoreInvalid)
		c.telemetry.LogEvent("restore_user_missing", nil)
		return
	}

	// Metadata from the stored, unrefreshed session. The flag is set both
	// in memory and on disk so a later refresh runs when connectivity
	// returns.
	meta := c.expiry.Derive(&models.RemoteSession{Credentials: bundle.Credentials})
	c.sessions.MarkNeedsRefresh(ctx)
	c.state.SetAuthenticated(user, &meta, true)
	c.telemetry.LogEvent("restore_offline_trusted", map[string]any{"age_hours": int(age.Hours())})
}

// userFromBundle recovers the user from the stored payload, overlaying the
// cached onboarding flag, which exists for exactly this unreachable-server
// case.
func (c *Coordinator) userFromBundle(bundle *models.SessionBundle) *models.UserProfile {
	if bundle.User == nil {
		return nil
	}
	user := *bundle.User
	if user.HasOnboarded == nil && bundle.HasOnboarded != nil {
		user.HasOnboarded = bundle.HasOnboarded
	}
	return &user
}

// Logout revokes the session with the backend on a best-effort basis, then
// clears local storage and writes the signed-out state. Local cleanup is
// unconditional; a failed revocation never strands the user signed in.
func (c *Coordinator) Logout(ctx context.Context) state.Snapshot {
	if bundle := c.sessions.Load(ctx); bundle != nil {
		revokeCtx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()
		if err := c.gateway.SignOut(revokeCtx, bundle.Credentials); err != nil {
			c.logger.Warn().Err(err).Msg("Backend sign-out failed, clearing locally")
		}
	}
	c.sessions.Clear(ctx)
	c.state.SetUnauthenticated(models.ReasonLogout)
	c.telemetry.LogEvent("logout", nil)
	return c.state.Snapshot()
}
