// internal/store/file.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// FileStore persists entries as a JSON array. Writes go through a
// temporary file and an atomic rename so a crash never leaves a
// half-written list behind.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path, creating parent
// directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Save merges the given entries into the stored list and rewrites the
// file atomically.
func (s *FileStore) Save(ctx context.Context, entries []proxy.ProxyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readLocked()
	if err != nil {
		return err
	}

	keyed := make(map[string]int, len(existing))
	for i, entry := range existing {
		key, kerr := normalizeKey(entry.URL)
		if kerr != nil {
			continue
		}
		keyed[key] = i
	}

	for _, entry := range entries {
		key, kerr := normalizeKey(entry.URL)
		if kerr != nil {
			return kerr
		}
		if i, exists := keyed[key]; exists {
			existing[i] = entry
		} else {
			keyed[key] = len(existing)
			existing = append(existing, entry)
		}
	}

	return s.writeLocked(existing)
}

// Load returns the stored entries. A missing file is an empty list.
func (s *FileStore) Load(_ context.Context) ([]proxy.ProxyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Remove deletes one entry by URL.
func (s *FileStore) Remove(_ context.Context, rawURL string) error {
	key, err := normalizeKey(rawURL)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readLocked()
	if err != nil {
		return err
	}

	kept := existing[:0]
	for _, entry := range existing {
		entryKey, kerr := normalizeKey(entry.URL)
		if kerr == nil && entryKey == key {
			continue
		}
		kept = append(kept, entry)
	}
	return s.writeLocked(kept)
}

// Clear rewrites the file as an empty list.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(nil)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readLocked() ([]proxy.ProxyEntry, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var entries []proxy.ProxyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding store file %s: %w", s.path, err)
	}
	return entries, nil
}

func (s *FileStore) writeLocked(entries []proxy.ProxyEntry) error {
	if entries == nil {
		entries = []proxy.ProxyEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
