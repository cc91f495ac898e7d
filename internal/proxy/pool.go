// internal/proxy/pool.go
package proxy

import (
	"fmt"
	"sync"
)

// Pool is an insertion-ordered, id-keyed set of proxies. Every pool is
// owned by exactly one rotator; all membership changes and candidate
// enumeration happen under the pool's mutex.
type Pool struct {
	mu      sync.RWMutex
	ordered []*Proxy
	byID    map[string]*Proxy
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		byID: make(map[string]*Proxy),
	}
}

// Add inserts a proxy at the end of the pool. Adding a duplicate id is
// an error and leaves the pool unchanged.
func (pl *Pool) Add(p *Proxy) error {
	if p == nil {
		return fmt.Errorf("proxy is nil")
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if _, exists := pl.byID[p.ID]; exists {
		return fmt.Errorf("proxy %s already in pool", p.ID)
	}

	pl.ordered = append(pl.ordered, p)
	pl.byID[p.ID] = p
	return nil
}

// Remove deletes a proxy by id, preserving the order of the remaining
// entries. It reports whether the proxy was present.
func (pl *Pool) Remove(id string) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if _, exists := pl.byID[id]; !exists {
		return false
	}

	delete(pl.byID, id)
	for i, p := range pl.ordered {
		if p.ID == id {
			pl.ordered = append(pl.ordered[:i], pl.ordered[i+1:]...)
			break
		}
	}
	return true
}

// Get looks up a proxy by id.
func (pl *Pool) Get(id string) (*Proxy, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	p, ok := pl.byID[id]
	return p, ok
}

// Len returns the number of live entries.
func (pl *Pool) Len() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.ordered)
}

// Snapshot returns the pool's proxies in insertion order. The slice is a
// copy; the pointed-to proxies are the live ones.
func (pl *Pool) Snapshot() []*Proxy {
	pl.mu.RLock()
	defer pl.mu.RUnlock()

	out := make([]*Proxy, len(pl.ordered))
	copy(out, pl.ordered)
	return out
}

// Stats aggregates the pool's counters into a point-in-time summary.
// Proxies that have not yet shown a failure count as healthy.
func (pl *Pool) Stats() PoolStats {
	pl.mu.RLock()
	proxies := make([]*Proxy, len(pl.ordered))
	copy(proxies, pl.ordered)
	pl.mu.RUnlock()

	stats := PoolStats{TotalProxies: len(proxies)}
	for _, p := range proxies {
		snap := p.Snapshot()
		stats.TotalRequests += snap.TotalRequests
		stats.TotalSuccesses += snap.TotalSuccesses
		stats.TotalFailures += snap.TotalFailures

		switch snap.Health {
		case HealthHealthy, HealthUnknown:
			stats.HealthyProxies++
		case HealthDead:
			stats.DeadProxies++
		default:
			stats.UnhealthyProxies++
		}
	}
	return stats
}
