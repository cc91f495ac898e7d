// internal/store/store_test.go
package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

func testEntries() []proxy.ProxyEntry {
	return []proxy.ProxyEntry{
		{URL: "http://10.0.0.1:8080", CountryCode: "US", Region: "NA"},
		{URL: "socks5://10.0.0.2:1080", CountryCode: "DE", Region: "EU", CostPerRequest: 0.5},
		{URL: "10.0.0.3:3128"},
	}
}

// storeUnderTest runs the shared backend contract against a store.
func storeUnderTest(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.Save(ctx, testEntries()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d entries, want 3", len(loaded))
	}

	// Saving the same endpoint again must update, not duplicate.
	if err := s.Save(ctx, []proxy.ProxyEntry{
		{URL: "http://10.0.0.1:8080", CountryCode: "CA", Region: "NA"},
	}); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}
	loaded, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("after upsert loaded %d entries, want 3", len(loaded))
	}
	var updated bool
	for _, entry := range loaded {
		if entry.CountryCode == "CA" {
			updated = true
		}
	}
	if !updated {
		t.Error("upsert did not update the existing entry")
	}

	if err := s.Remove(ctx, "socks5://10.0.0.2:1080"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	loaded, _ = s.Load(ctx)
	if len(loaded) != 2 {
		t.Fatalf("after remove loaded %d entries, want 2", len(loaded))
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	loaded, _ = s.Load(ctx)
	if len(loaded) != 0 {
		t.Fatalf("after clear loaded %d entries, want 0", len(loaded))
	}
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestMemoryStoreOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, testEntries()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, _ := s.Load(ctx)
	if loaded[0].URL != "http://10.0.0.1:8080" {
		t.Errorf("first entry = %q, want insertion order preserved", loaded[0].URL)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxies.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	storeUnderTest(t, s)
}

func TestFileStoreAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := s.Save(context.Background(), testEntries()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after Save")
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	loaded, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded %d entries from an absent file, want 0", len(loaded))
	}
}

func TestSQLiteStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping sqlite store in short mode")
	}
	s, err := NewSQLiteStore(Config{
		Backend: BackendSQLite,
		Path:    filepath.Join(t.TempDir(), "proxies.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()
	storeUnderTest(t, s)
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), Config{Backend: "redis"}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestSaveInvalidURLFails(t *testing.T) {
	s := NewMemoryStore()
	err := s.Save(context.Background(), []proxy.ProxyEntry{{URL: "ftp://bad"}})
	if err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}
