// Package ledger durably records per-model download completion and progress.
package ledger

import "sync"

// Store is the durable string-keyed collaborator backing the ledger. Writes
// are assumed atomic at key granularity: a crash mid-Set must leave either the
// previous or the new value readable, never a torn one.
type Store interface {
	// Get returns the value for key, reporting whether the key exists.
	Get(key string) (string, bool, error)
	// Set durably stores value under key.
	Set(key, value string) error
}

// MemoryStore is an in-process Store. It is the default for tests and for
// hosts that supply no durable storage, in which case ledger state is lost on
// restart.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.Set.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
