package keyring

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/remindsafe/internal/common"
)

// MemoryStore holds key material in process memory. Delete overwrites the
// stored bytes with zeros before dropping them, as a best-effort defense
// against memory scraping.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string][]byte)}
}

func memKey(userID, name string) string { return userID + "/" + name }

func (s *MemoryStore) Get(ctx context.Context, userID, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.keys[memKey(userID, name)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := make([]byte, len(material))
	copy(out, material)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, userID, name string, material []byte) error {
	stored := make([]byte, len(material))
	copy(stored, material)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.keys[memKey(userID, name)]; ok {
		common.WipeByteArray(old)
	}
	s.keys[memKey(userID, name)] = stored
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if material, ok := s.keys[memKey(userID, name)]; ok {
		common.WipeByteArray(material)
		delete(s.keys, memKey(userID, name))
	}
	return nil
}
