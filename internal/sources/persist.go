// internal/sources/persist.go - store-backed candidate caching
package sources

import (
	"context"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/store"
)

// PersistentFetcher wraps a candidate fetcher with a store. Successful
// fetches are written through to the store; when every source fails,
// the previously stored candidates are served instead, so a rotator
// can still bootstrap while the lists are down.
type PersistentFetcher struct {
	inner proxy.CandidateFetcher
	store store.Store
}

// NewPersistentFetcher wraps fetcher with st. Both must be non-nil.
func NewPersistentFetcher(fetcher proxy.CandidateFetcher, st store.Store) *PersistentFetcher {
	return &PersistentFetcher{inner: fetcher, store: st}
}

// FetchCandidates implements proxy.CandidateFetcher.
func (f *PersistentFetcher) FetchCandidates(ctx context.Context) ([]proxy.ProxyEntry, error) {
	entries, err := f.inner.FetchCandidates(ctx)
	if err != nil {
		cached, loadErr := f.store.Load(ctx)
		if loadErr == nil && len(cached) > 0 {
			fetcherLogger.WithFields(map[string]interface{}{
				"cached": len(cached),
				"error":  err.Error(),
			}).Warn("all sources failed, serving stored candidates")
			return cached, nil
		}
		return nil, err
	}

	if saveErr := f.store.Save(ctx, entries); saveErr != nil {
		fetcherLogger.Warnf("failed to persist %d candidates: %v", len(entries), saveErr)
	}
	return entries, nil
}
