package auth

import (
	"math"
	"time"

	"github.com/closetapp/closetd/internal/models"
)

// DefaultTokenLifetime is the backend's nominal access-token lifetime, used
// when a session carries no usable expiry information at all.
const DefaultTokenLifetime = time.Hour

// Calculator normalizes the backend's inconsistent expiry fields into one
// absolute millisecond timestamp. Pure: no I/O, deterministic given the
// clock.
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a calculator using the wall clock.
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

// NewCalculatorWithClock creates a calculator with an injected clock (for tests).
func NewCalculatorWithClock(now func() time.Time) *Calculator {
	return &Calculator{now: now}
}

// Derive resolves a session's expiry through three fallback tiers:
//  1. expires_at (epoch seconds) when valid: the absolute timestamp.
//  2. expires_in (seconds) when valid: relative to now. Subject to local
//     clock drift, which only shifts when a proactive refresh is scheduled,
//     never authorization itself.
//  3. Otherwise now plus the nominal token lifetime.
//
// Each candidate is validated before use: NaN, infinities, and
// non-positive values fall through to the next tier.
func (c *Calculator) Derive(sess *models.RemoteSession) models.TokenMetadata {
	tokenType := sess.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	if validExpiryValue(sess.ExpiresAt) {
		return models.TokenMetadata{
			ExpiresAt: int64(*sess.ExpiresAt * 1000),
			TokenType: tokenType,
			Tier:      models.TierAbsolute,
		}
	}

	if validExpiryValue(sess.ExpiresIn) {
		return models.TokenMetadata{
			ExpiresAt: c.now().UnixMilli() + int64(*sess.ExpiresIn*1000),
			TokenType: tokenType,
			Tier:      models.TierRelative,
		}
	}

	return models.TokenMetadata{
		ExpiresAt: c.now().UnixMilli() + DefaultTokenLifetime.Milliseconds(),
		TokenType: tokenType,
		Tier:      models.TierDefault,
	}
}

// validExpiryValue rejects absent, NaN, infinite, and non-positive values.
func validExpiryValue(v *float64) bool {
	if v == nil {
		return false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	return *v > 0
}
