// Package storage provides the two BadgerDB-backed device storage tiers:
// an encrypted secure store for the session bundle and a plaintext local
// store for lower-trust records such as rate-limit windows.
package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/timshannon/badgerhold/v4"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/closetapp/closetd/internal/common"
	"github.com/closetapp/closetd/internal/interfaces"
	"github.com/closetapp/closetd/internal/models"
)

// ErrSealBroken indicates a stored value failed authenticated decryption.
// The record exists but cannot be trusted; callers self-heal by deleting it.
var ErrSealBroken = errors.New("sealed value failed authentication")

// Compile-time interface check
var _ interfaces.SecureStore = (*SecureStore)(nil)

// SecureStore is the encrypted-at-rest tier. Values are sealed with
// ChaCha20-Poly1305 before they touch disk; the record key is the only
// plaintext badger sees.
type SecureStore struct {
	store  *badgerhold.Store
	aead   cipher.AEAD
	logger *common.Logger
}

// NewSecureStore opens the encrypted store at path, sealing values with the
// 32-byte key at keyFile. A missing key file is created on first run with
// 0600 permissions.
func NewSecureStore(logger *common.Logger, path, keyFile string) (*SecureStore, error) {
	key, err := loadOrCreateKey(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sealing key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil // Disable badger's internal logging

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open secure store: %w", err)
	}

	logger.Debug().Str("path", path).Msg("Secure store opened")

	return &SecureStore{store: store, aead: aead, logger: logger}, nil
}

// GetItem returns the unsealed value and whether the key exists.
// A record that fails authenticated decryption returns ErrSealBroken.
func (s *SecureStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var rec models.SecureRecord
	err := s.store.Get(key, &rec)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read secure record: %w", err)
	}

	if len(rec.Nonce) != s.aead.NonceSize() {
		return "", true, ErrSealBroken
	}
	plaintext, err := s.aead.Open(nil, rec.Nonce, rec.Ciphertext, []byte(key))
	if err != nil {
		return "", true, ErrSealBroken
	}
	return string(plaintext), true, nil
}

// SetItem seals and upserts a value.
func (s *SecureStore) SetItem(ctx context.Context, key, value string) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	rec := models.SecureRecord{
		Key:        key,
		Nonce:      nonce,
		Ciphertext: s.aead.Seal(nil, nonce, []byte(value), []byte(key)),
		UpdatedAt:  time.Now(),
	}
	if err := s.store.Upsert(key, rec); err != nil {
		return fmt.Errorf("failed to save secure record: %w", err)
	}
	s.logger.Debug().Str("key", key).Msg("Secure record saved")
	return nil
}

// DeleteItem removes a record. Deleting a missing key is not an error.
func (s *SecureStore) DeleteItem(ctx context.Context, key string) error {
	err := s.store.Delete(key, models.SecureRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete secure record: %w", err)
	}
	return nil
}

// Close closes the underlying store.
func (s *SecureStore) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// loadOrCreateKey reads the 32-byte sealing key, generating one on first run.
func loadOrCreateKey(keyFile string) ([]byte, error) {
	key, err := os.ReadFile(keyFile)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("key file %s has wrong size %d", keyFile, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyFile, key, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}
