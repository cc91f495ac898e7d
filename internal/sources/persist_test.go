// internal/sources/persist_test.go
package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/store"
)

type stubFetcher struct {
	entries []proxy.ProxyEntry
	err     error
}

func (s *stubFetcher) FetchCandidates(ctx context.Context) ([]proxy.ProxyEntry, error) {
	return s.entries, s.err
}

func TestPersistentFetcherWritesThrough(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	entries := []proxy.ProxyEntry{
		{URL: "http://proxy1.example.com:8080", Source: string(proxy.SourceFetched)},
		{URL: "http://proxy2.example.com:8080", Source: string(proxy.SourceFetched)},
	}

	pf := NewPersistentFetcher(&stubFetcher{entries: entries}, st)

	got, err := pf.FetchCandidates(ctx)
	if err != nil {
		t.Fatalf("FetchCandidates() returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FetchCandidates() returned %d entries, want 2", len(got))
	}

	stored, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if len(stored) != 2 {
		t.Errorf("store holds %d entries after fetch, want 2", len(stored))
	}
}

func TestPersistentFetcherFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	cached := []proxy.ProxyEntry{{URL: "http://cached.example.com:8080"}}
	if err := st.Save(ctx, cached); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	pf := NewPersistentFetcher(&stubFetcher{err: errors.New("lists unreachable")}, st)

	got, err := pf.FetchCandidates(ctx)
	if err != nil {
		t.Fatalf("FetchCandidates() returned error despite cache: %v", err)
	}
	if len(got) != 1 || got[0].URL != "http://cached.example.com:8080" {
		t.Errorf("FetchCandidates() = %+v, want the cached entry", got)
	}
}

func TestPersistentFetcherEmptyStorePropagatesError(t *testing.T) {
	pf := NewPersistentFetcher(&stubFetcher{err: errors.New("lists unreachable")}, store.NewMemoryStore())

	if _, err := pf.FetchCandidates(context.Background()); err == nil {
		t.Fatal("FetchCandidates() succeeded with no sources and an empty store")
	}
}
