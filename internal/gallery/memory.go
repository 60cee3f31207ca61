package gallery

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-device
// deployments without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry

	// Error injection for tests.
	ReadError    error
	ReplaceError error
}

// NewMemoryStore creates an empty in-memory gallery.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// ReadAll returns a copy of the current entries.
func (s *MemoryStore) ReadAll(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadError != nil {
		return nil, s.ReadError
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// ReplaceAll swaps the gallery contents.
func (s *MemoryStore) ReplaceAll(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ReplaceError != nil {
		return s.ReplaceError
	}
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	return nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
