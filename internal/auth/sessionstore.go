package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/models"
	"github.com/closetapp/closetd/internal/storage"
)

// sessionKey is the single secure-store record holding the session bundle.
const sessionKey = "closet.session"

// SessionStore persists the session bundle in the encrypted tier.
//
// The failure policy is asymmetric: writes and deletes are
// fail-open (a storage fault never blocks the user, at the cost of losing
// persistence until the next successful write), while reads are fail-closed
// (anything that does not fully validate is destroyed, never returned).
type SessionStore struct {
	secure    interfaces.SecureStore
	telemetry interfaces.TelemetrySink
	logger    *common.Logger
}

// NewSessionStore creates a session store over the secure tier.
func NewSessionStore(secure interfaces.SecureStore, telemetry interfaces.TelemetrySink, logger *common.Logger) *SessionStore {
	return &SessionStore{
		secure:    secure,
		telemetry: telemetry,
		logger:    logger,
	}
}

// Load returns the stored bundle, or nil. Error-free by contract: a missing
// record, a storage fault, or corrupt data all yield nil. Corrupt data is
// deleted on the spot, so a second Load also returns nil without
// re-triggering the healing path.
func (s *SessionStore) Load(ctx context.Context) *models.SessionBundle {
	raw, found, err := s.secure.GetItem(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, storage.ErrSealBroken) {
			s.selfHeal(ctx, "seal_broken")
			return nil
		}
		// Engine fault: nothing to trust, nothing to destroy.
		s.logger.Warn().Err(err).Msg("Failed to read session bundle")
		s.telemetry.LogError(err, "session_read_failed", nil)
		return nil
	}
	if !found || raw == "" {
		return nil
	}

	var bundle models.SessionBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		s.selfHeal(ctx, "malformed_json")
		return nil
	}
	if reason := validateBundle(&bundle); reason != "" {
		s.selfHeal(ctx, reason)
		return nil
	}
	return &bundle
}

// Save persists a fresh bundle. A fresh save always implies no pending
// refresh need. Write failures are logged and swallowed.
func (s *SessionStore) Save(ctx context.Context, creds models.TokenPair, lastAuthSuccessAt time.Time, user *models.UserProfile, hasOnboarded *bool) {
	if creds.AccessToken == "" || creds.RefreshToken == "" || lastAuthSuccessAt.IsZero() {
		s.logger.Error().Msg("Refusing to save incomplete session bundle")
		s.telemetry.LogError(fmt.Errorf("incomplete session bundle"), "session_save_invalid", nil)
		return
	}

	bundle := models.SessionBundle{
		Credentials:       creds,
		LastAuthSuccessAt: lastAuthSuccessAt.UTC().Format(time.RFC3339),
		User:              user,
		NeedsRefresh:      false,
		HasOnboarded:      hasOnboarded,
	}
	s.persist(ctx, &bundle)
}

// Clear deletes the bundle. Deletion failures are logged and swallowed so
// logout always proceeds locally.
func (s *SessionStore) Clear(ctx context.Context) {
	if err := s.secure.DeleteItem(ctx, sessionKey); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clear session bundle")
		s.telemetry.LogError(err, "session_clear_failed", nil)
	}
}

// MarkNeedsRefresh flags the stored bundle for an opportunistic refresh.
// No-op when no valid bundle exists.
func (s *SessionStore) MarkNeedsRefresh(ctx context.Context) {
	s.setNeedsRefresh(ctx, true)
}

// ClearNeedsRefresh drops the pending-refresh flag. No-op when no valid
// bundle exists.
func (s *SessionStore) ClearNeedsRefresh(ctx context.Context) {
	s.setNeedsRefresh(ctx, false)
}

func (s *SessionStore) setNeedsRefresh(ctx context.Context, v bool) {
	bundle := s.Load(ctx)
	if bundle == nil {
		return
	}
	if bundle.NeedsRefresh == v {
		return
	}
	bundle.NeedsRefresh = v
	s.persist(ctx, bundle)
}

func (s *SessionStore) persist(ctx context.Context, bundle *models.SessionBundle) {
	data, err := json.Marshal(bundle)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode session bundle")
		s.telemetry.LogError(err, "session_save_failed", nil)
		return
	}
	if err := s.secure.SetItem(ctx, sessionKey, string(data)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write session bundle")
		s.telemetry.LogError(err, "session_save_failed", nil)
	}
}

// selfHeal destroys an untrustworthy record and emits a diagnostic naming
// the corruption shape. Never surfaces as a user-facing error.
func (s *SessionStore) selfHeal(ctx context.Context, shape string) {
	if err := s.secure.DeleteItem(ctx, sessionKey); err != nil {
		s.logger.Warn().Err(err).Str("shape", shape).Msg("Failed to delete corrupt session bundle")
	} else {
		s.logger.Info().Str("shape", shape).Msg("Corrupt session bundle deleted")
	}
	s.telemetry.LogEvent("session_bundle_corrupt", map[string]any{"shape": shape})
}

// validateBundle enforces the all-or-nothing invariant. Returns the
// corruption shape, or empty when the bundle is fully valid.
func validateBundle(b *models.SessionBundle) string {
	if b.Credentials.AccessToken == "" || b.Credentials.RefreshToken == "" {
		return "missing_credentials"
	}
	if b.LastAuthSuccessAt == "" {
		return "missing_timestamp"
	}
	if _, err := b.LastAuthSuccess(); err != nil {
		return "unparseable_timestamp"
	}
	return ""
}
