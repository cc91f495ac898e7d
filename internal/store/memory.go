// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// MemoryStore keeps entries in process memory, preserving insertion
// order. Useful for tests and as the default when no persistence is
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	ordered []string
	entries map[string]proxy.ProxyEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]proxy.ProxyEntry),
	}
}

// Save upserts entries. Invalid URLs are rejected as a whole batch.
func (s *MemoryStore) Save(_ context.Context, entries []proxy.ProxyEntry) error {
	keyed := make(map[string]proxy.ProxyEntry, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		key, err := normalizeKey(entry.URL)
		if err != nil {
			return err
		}
		if _, seen := keyed[key]; !seen {
			order = append(order, key)
		}
		keyed[key] = entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range order {
		if _, exists := s.entries[key]; !exists {
			s.ordered = append(s.ordered, key)
		}
		s.entries[key] = keyed[key]
	}
	return nil
}

// Load returns all entries in insertion order.
func (s *MemoryStore) Load(_ context.Context) ([]proxy.ProxyEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]proxy.ProxyEntry, 0, len(s.ordered))
	for _, key := range s.ordered {
		out = append(out, s.entries[key])
	}
	return out, nil
}

// Remove deletes one entry by URL. Removing an absent entry is a no-op.
func (s *MemoryStore) Remove(_ context.Context, rawURL string) error {
	key, err := normalizeKey(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists {
		return nil
	}
	delete(s.entries, key)
	for i, k := range s.ordered {
		if k == key {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return nil
}

// Clear drops every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ordered = nil
	s.entries = make(map[string]proxy.ProxyEntry)
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
