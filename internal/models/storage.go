package models

import "time"

// SecureRecord is a single encrypted-at-rest value in the secure store.
// Plaintext never touches disk: values are sealed before upsert and the
// nonce is stored alongside the ciphertext.
type SecureRecord struct {
	Key        string    `json:"key"`
	Nonce      []byte    `json:"nonce"`
	Ciphertext []byte    `json:"ciphertext"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LocalRecord is a plaintext key-value entry in the lower-trust local
// store. Acceptable to lose on device reset (rate-limit windows live here).
type LocalRecord struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
