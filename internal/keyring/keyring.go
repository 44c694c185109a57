// Package keyring abstracts the locations where key material lives: the
// in-process memory keyring, the local secure table in SQLite, and the
// remote escrow objects in S3-compatible storage. The destruction
// orchestrator operates on these stores uniformly.
package keyring

import (
	"context"

	"github.com/dmitrijs2005/remindsafe/internal/cryptox"
)

// Well-known key names. These are part of the storage layout; renaming them
// orphans existing key material.
const (
	KeyDevice      = "device_key"
	KeyLegacy      = "legacy_key"
	KeyAMK         = "account_master_key"
	KeyCrossDevice = "cross_device_key"
)

// Store is a key-material location addressed by user id and key name.
// Get returns common.ErrorNotFound when the key is absent. Delete is
// idempotent: deleting an absent key is not an error.
type Store interface {
	Get(ctx context.Context, userID, name string) ([]byte, error)
	Put(ctx context.Context, userID, name string, material []byte) error
	Delete(ctx context.Context, userID, name string) error
}

// MasterKeySource adapts a Store holding the account master key to the
// cryptox.KeySource capability consumed by the cipher box.
type MasterKeySource struct {
	Store Store
	Name  string
}

var _ cryptox.KeySource = (*MasterKeySource)(nil)

func (s *MasterKeySource) MasterKey(ctx context.Context, userID string) ([]byte, error) {
	name := s.Name
	if name == "" {
		name = KeyAMK
	}
	return s.Store.Get(ctx, userID, name)
}
