package storage

import (
	"fmt"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
)

// Manager implements interfaces.StorageManager over the 2 storage tiers.
type Manager struct {
	secure *SecureStore
	local  *LocalStore
	logger *common.Logger
}

// NewManager creates a StorageManager with both tiers opened.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	secure, err := NewSecureStore(logger, config.Storage.SecurePath(), config.Storage.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create secure store: %w", err)
	}

	local, err := NewLocalStore(logger, config.Storage.LocalPath())
	if err != nil {
		secure.Close()
		return nil, fmt.Errorf("failed to create local store: %w", err)
	}

	logger.Info().
		Str("secure", config.Storage.SecurePath()).
		Str("local", config.Storage.LocalPath()).
		Msg("Storage manager initialized (2 tiers)")

	return &Manager{secure: secure, local: local, logger: logger}, nil
}

func (m *Manager) SecureStore() interfaces.SecureStore {
	return m.secure
}

func (m *Manager) LocalStore() interfaces.LocalStore {
	return m.local
}

func (m *Manager) Close() error {
	var firstErr error
	if err := m.secure.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.local.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
