// Package state holds the in-memory authentication state the app UI
// routes on. The restore coordinator is the privileged writer during
// cold start; login and logout flows also write here.
package state

import (
	"sync"

	"github.com/closetapp/closetd/internal/models"
)

// Snapshot is one consistent view of the authentication state. IsHydrating
// is the only state in which the UI must not yet decide a route.
type Snapshot struct {
	User            *models.UserProfile   `json:"user,omitempty"`
	IsAuthenticated bool                  `json:"is_authenticated"`
	IsHydrating     bool                  `json:"is_hydrating"`
	TokenMetadata   *models.TokenMetadata `json:"token_metadata,omitempty"`
	LogoutReason    models.Reason         `json:"logout_reason,omitempty"`
	NeedsRefresh    bool                  `json:"needs_refresh"`
}

// Container guards the snapshot. Every setter replaces the whole outcome in
// one transition so observers never see an intermediate state, e.g. a user
// with no token metadata.
type Container struct {
	mu        sync.Mutex
	snapshot  Snapshot
	listeners []func(Snapshot)
}

// NewContainer creates an empty, non-hydrating state container.
func NewContainer() *Container {
	return &Container{}
}

// Snapshot returns a copy of the current state.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// OnChange registers a listener invoked after every transition, outside the
// lock, in registration order.
func (c *Container) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// SetHydrating flips only the hydrating flag, preserving other fields.
func (c *Container) SetHydrating(hydrating bool) {
	c.mu.Lock()
	c.snapshot.IsHydrating = hydrating
	snap, listeners := c.snapshot, c.listeners
	c.mu.Unlock()
	notify(listeners, snap)
}

// SetAuthenticated writes a full authenticated outcome.
func (c *Container) SetAuthenticated(user *models.UserProfile, meta *models.TokenMetadata, needsRefresh bool) {
	c.mu.Lock()
	c.snapshot = Snapshot{
		User:            user,
		IsAuthenticated: true,
		IsHydrating:     c.snapshot.IsHydrating,
		TokenMetadata:   meta,
		NeedsRefresh:    needsRefresh,
	}
	snap, listeners := c.snapshot, c.listeners
	c.mu.Unlock()
	notify(listeners, snap)
}

// SetUnauthenticated writes a full logged-out outcome with a reason code.
func (c *Container) SetUnauthenticated(reason models.Reason) {
	c.mu.Lock()
	c.snapshot = Snapshot{
		IsHydrating:  c.snapshot.IsHydrating,
		LogoutReason: reason,
	}
	snap, listeners := c.snapshot, c.listeners
	c.mu.Unlock()
	notify(listeners, snap)
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
