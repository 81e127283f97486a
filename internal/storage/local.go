package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/models"
)

// Compile-time interface check
var _ interfaces.LocalStore = (*LocalStore)(nil)

// LocalStore is the plaintext lower-trust tier.
type LocalStore struct {
	store  *badgerhold.Store
	logger *common.Logger
}

// NewLocalStore opens the plaintext store at path.
func NewLocalStore(logger *common.Logger, path string) (*LocalStore, error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil // Disable badger's internal logging

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Local store opened")

	return &LocalStore{store: store, logger: logger}, nil
}

// GetItem returns the stored value and whether the key exists.
func (s *LocalStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var rec models.LocalRecord
	err := s.store.Get(key, &rec)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read local record: %w", err)
	}
	return rec.Value, true, nil
}

// SetItem upserts a value.
func (s *LocalStore) SetItem(ctx context.Context, key, value string) error {
	rec := models.LocalRecord{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if err := s.store.Upsert(key, rec); err != nil {
		return fmt.Errorf("failed to save local record: %w", err)
	}
	return nil
}

// DeleteItem removes a record. Deleting a missing key is not an error.
func (s *LocalStore) DeleteItem(ctx context.Context, key string) error {
	err := s.store.Delete(key, models.LocalRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete local record: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (s *LocalStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
