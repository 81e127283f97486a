package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/closetapp/closetd/internal/models"
)

// memStore is an in-memory key-value store used in place of the badger-backed
// tiers. Error injection fields simulate engine failures.
type memStore struct {
	mu      sync.Mutex
	items   map[string]string
	getErr  error
	setErr  error
	deletes int
}

func newMemStore() *memStore {
	return &memStore{items: make(map[string]string)}
}

func (m *memStore) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memStore) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.items[key] = value
	return nil
}

func (m *memStore) DeleteItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.items, key)
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.items))
	for k := range m.items {
		out = append(out, k)
	}
	return out
}

func (m *memStore) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

// fakeGateway scripts the remote auth boundary.
type fakeGateway struct {
	refreshFn    func(ctx context.Context, creds models.TokenPair) (*models.RefreshResult, error)
	requestErr   error
	confirmErr   error
	signOutErr   error
	refreshCalls atomic.Int64
	requestCalls atomic.Int64
	confirmCalls atomic.Int64
	signOutCalls atomic.Int64
}

func (g *fakeGateway) Refresh(ctx context.Context, creds models.TokenPair) (*models.RefreshResult, error) {
	g.refreshCalls.Add(1)
	if g.refreshFn != nil {
		return g.refreshFn(ctx, creds)
	}
	return nil, nil
}

func (g *fakeGateway) RequestPasswordReset(context.Context, string) error {
	g.requestCalls.Add(1)
	return g.requestErr
}

func (g *fakeGateway) ConfirmPasswordReset(context.Context, string, string) error {
	g.confirmCalls.Add(1)
	return g.confirmErr
}

func (g *fakeGateway) SignOut(context.Context, models.TokenPair) error {
	g.signOutCalls.Add(1)
	return g.signOutErr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func boolPtr(b bool) *bool { return &b }

func f64(v float64) *float64 { return &v }
