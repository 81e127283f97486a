package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
)

// digestLen is the hex length of hashed limiter keys: long enough that
// collisions are improbable at this scale, short enough for storage keys.
// The hash is for key derivation, not secrecy.
const digestLen = 16

const (
	resetRequestPrefix = "closet.rl.reset_request."
	resetAttemptPrefix = "closet.rl.reset_attempt."
)

// Verdict is the outcome of a rate-limit check.
type Verdict struct {
	Allowed           bool
	RetryAfterSeconds int
}

// SlidingWindowLimiter counts attempts per hashed identifier within a
// trailing window, pruning on every read. It is fail-open: if the counter
// store itself is unavailable, the action is allowed rather than blocked.
// Concurrent records for the same identifier race last-write-wins, which is
// acceptable for an abuse deterrent.
type SlidingWindowLimiter struct {
	store       interfaces.LocalStore
	logger      *common.Logger
	window      time.Duration
	maxAttempts int
	keyPrefix   string
	normalize   func(string) string
	now         func() time.Time
}

// NewSlidingWindowLimiter creates a limiter over the local store.
func NewSlidingWindowLimiter(store interfaces.LocalStore, logger *common.Logger, window time.Duration, maxAttempts int, keyPrefix string) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		store:       store,
		logger:      logger,
		window:      window,
		maxAttempts: maxAttempts,
		keyPrefix:   keyPrefix,
		normalize:   func(s string) string { return s },
		now:         time.Now,
	}
}

// NewResetRequestLimiter limits password-reset requests per email: a long
// window with a low ceiling to blunt account enumeration.
func NewResetRequestLimiter(store interfaces.LocalStore, logger *common.Logger, cfg *common.AuthConfig) *SlidingWindowLimiter {
	l := NewSlidingWindowLimiter(store, logger, cfg.GetResetRequestWindow(), cfg.ResetRequestMax, resetRequestPrefix)
	l.normalize = NormalizeEmail
	return l
}

// NewResetAttemptLimiter limits recovery-token redemption attempts: a short
// window to blunt brute force of the token itself.
func NewResetAttemptLimiter(store interfaces.LocalStore, logger *common.Logger, cfg *common.AuthConfig) *SlidingWindowLimiter {
	return NewSlidingWindowLimiter(store, logger, cfg.GetResetAttemptWindow(), cfg.ResetAttemptMax, resetAttemptPrefix)
}

// Check evaluates whether another attempt is allowed right now.
func (l *SlidingWindowLimiter) Check(ctx context.Context, identifier string) Verdict {
	entries, err := l.load(ctx, identifier)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Rate limit store unavailable, allowing")
		return Verdict{Allowed: true}
	}

	nowMs := l.now().UnixMilli()
	entries = l.prune(entries, nowMs)
	if len(entries) < l.maxAttempts {
		return Verdict{Allowed: true}
	}

	oldest := entries[0]
	remainingMs := l.window.Milliseconds() - (nowMs - oldest)
	seconds := int(math.Ceil(float64(remainingMs) / 1000))
	if seconds < 0 {
		seconds = 0
	}
	return Verdict{Allowed: false, RetryAfterSeconds: seconds}
}

// Record registers an attempt. Failures are logged and swallowed.
func (l *SlidingWindowLimiter) Record(ctx context.Context, identifier string) {
	entries, err := l.load(ctx, identifier)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Rate limit store unavailable, attempt not recorded")
		return
	}

	nowMs := l.now().UnixMilli()
	entries = append(l.prune(entries, nowMs), nowMs)

	data, err := json.Marshal(entries)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to encode rate limit window")
		return
	}
	if err := l.store.SetItem(ctx, l.storageKey(identifier), string(data)); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to persist rate limit window")
	}
}

// Clear deletes the window, e.g. after a successful sensitive operation.
func (l *SlidingWindowLimiter) Clear(ctx context.Context, identifier string) {
	if err := l.store.DeleteItem(ctx, l.storageKey(identifier)); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to clear rate limit window")
	}
}

// load reads and decodes the window. An undecodable window counts as empty.
func (l *SlidingWindowLimiter) load(ctx context.Context, identifier string) ([]int64, error) {
	raw, found, err := l.store.GetItem(ctx, l.storageKey(identifier))
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}
	var entries []int64
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		l.logger.Warn().Err(err).Msg("Discarding undecodable rate limit window")
		return nil, nil
	}
	return entries, nil
}

// prune drops expired entries. The boundary is strictly exclusive: an entry
// exactly one window old is already expired.
func (l *SlidingWindowLimiter) prune(entries []int64, nowMs int64) []int64 {
	cutoff := nowMs - l.window.Milliseconds()
	kept := entries[:0]
	for _, ts := range entries {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}

// storageKey derives the namespaced key for an identifier. The plaintext
// identifier never appears in the key.
func (l *SlidingWindowLimiter) storageKey(identifier string) string {
	return l.keyPrefix + hashIdentifier(l.normalize(identifier))
}

// hashIdentifier returns a truncated hex SHA-256 digest of the identifier.
func hashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// NormalizeEmail canonicalizes an email for consistent limiter keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
