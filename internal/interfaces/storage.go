// Package interfaces defines service contracts for closetd
package interfaces

import "context"

// StorageManager coordinates the two device storage tiers.
type StorageManager interface {
	SecureStore() SecureStore
	LocalStore() LocalStore

	// Lifecycle
	Close() error
}

// SecureStore is the encrypted device storage tier. Values are sealed at
// rest; the session bundle is the only high-trust record kept here.
// All operations may fail on platform/storage errors; callers decide
// whether a failure is fatal.
type SecureStore interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	DeleteItem(ctx context.Context, key string) error
	Close() error
}

// LocalStore is the unencrypted lower-trust tier used for rate-limit
// counters. Same shape as SecureStore; acceptable to lose on device reset.
type LocalStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	DeleteItem(ctx context.Context, key string) error
	Close() error
}
