// internal/proxy/rotation_test.go
package proxy

import (
	"fmt"
	"testing"
	"time"
)

func testGeoPool(t *testing.T, countries ...string) (*Pool, []*Proxy) {
	t.Helper()
	pool := NewPool()
	proxies := make([]*Proxy, 0, len(countries))
	for i, country := range countries {
		p, err := NewProxyFromEntry(ProxyEntry{
			URL:         fmt.Sprintf("http://proxy%d.example.com:8080", i+1),
			CountryCode: country,
		})
		if err != nil {
			t.Fatalf("NewProxyFromEntry() returned error: %v", err)
		}
		if err := pool.Add(p); err != nil {
			t.Fatalf("Add() returned error: %v", err)
		}
		proxies = append(proxies, p)
	}
	return pool, proxies
}

func TestPerformanceBasedPrefersFasterProxies(t *testing.T) {
	pool, proxies := testPool(t, 2)
	s := newTestStrategy(t, StrategyPerformanceBased, nil)

	// proxies[0] averages 50ms, proxies[1] 500ms. Inverse latency
	// weighting puts roughly 10 of 11 draws on the fast one.
	proxies[0].StartRequest()
	proxies[0].FinishRequest(true, 50*time.Millisecond, 0.2)
	proxies[1].StartRequest()
	proxies[1].FinishRequest(true, 500*time.Millisecond, 0.2)

	counts := make(map[string]int)
	for i := 0; i < 2000; i++ {
		p := drawAndRevert(t, s, pool, NewSelectionContext())
		counts[p.ID]++
	}

	if counts[proxies[0].ID] < 1400 {
		t.Errorf("fast proxy selected %d/2000 times, expected a clear majority", counts[proxies[0].ID])
	}
}

func TestPerformanceBasedUnsampledTreatedAsAverage(t *testing.T) {
	pool, proxies := testPool(t, 2)
	s := newTestStrategy(t, StrategyPerformanceBased, nil)

	// Only proxies[0] has a sample. The unsampled proxy weighs in at the
	// average, which here equals the sampled latency, so the draw is even.
	proxies[0].StartRequest()
	proxies[0].FinishRequest(true, 100*time.Millisecond, 0.2)

	counts := make(map[string]int)
	for i := 0; i < 500; i++ {
		p := drawAndRevert(t, s, pool, NewSelectionContext())
		counts[p.ID]++
	}

	for _, p := range proxies {
		if counts[p.ID] < 100 {
			t.Errorf("proxy %s selected %d/500 times, want a near-even split", p, counts[p.ID])
		}
	}
}

func TestSessionStickiness(t *testing.T) {
	pool, _ := testPool(t, 3)
	s := newTestStrategy(t, StrategySession, nil)

	sctx := NewSelectionContext()
	sctx.SessionID = "user-42"

	first := drawAndRevert(t, s, pool, sctx)

	// Ten further selections with the same session id stay pinned.
	for i := 0; i < 10; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.ID != first.ID {
			t.Fatalf("selection %d returned %s, want the pinned proxy %s", i+1, p, first)
		}
	}
}

func TestSessionRequiresSessionID(t *testing.T) {
	pool, _ := testPool(t, 2)
	s := newTestStrategy(t, StrategySession, nil)

	_, err := s.Select(pool, NewSelectionContext())
	if !IsInvalidArgument(err) {
		t.Fatalf("Select() without session id = %v, want an invalid argument error", err)
	}

	if err := s.ValidateContext(nil); !IsInvalidArgument(err) {
		t.Errorf("ValidateContext(nil) = %v, want an invalid argument error", err)
	}
}

func TestSessionExpiryRepins(t *testing.T) {
	pool, _ := testPool(t, 3)
	s := newTestStrategy(t, StrategySession, &StrategyOptions{SessionStickiness: 10 * time.Millisecond})
	ss := s.(*sessionStrategy)

	sctx := NewSelectionContext()
	sctx.SessionID = "user-42"

	drawAndRevert(t, s, pool, sctx)
	firstPin := ss.assignments[sctx.SessionID]

	time.Sleep(20 * time.Millisecond)

	drawAndRevert(t, s, pool, sctx)
	secondPin := ss.assignments[sctx.SessionID]

	if !secondPin.assignedAt.After(firstPin.assignedAt) {
		t.Errorf("expired assignment was not refreshed")
	}
}

func TestSessionKeepsDegradedPin(t *testing.T) {
	pool, _ := testPool(t, 3)
	s := newTestStrategy(t, StrategySession, nil)

	sctx := NewSelectionContext()
	sctx.SessionID = "user-42"

	pinned := drawAndRevert(t, s, pool, sctx)

	// One failure degrades the proxy but does not break the pin.
	pinned.StartRequest()
	pinned.FinishRequest(false, 10*time.Millisecond, 0.2)
	if got := pinned.HealthStatus(); got != HealthDegraded {
		t.Fatalf("HealthStatus() = %v, want degraded", got)
	}

	again := drawAndRevert(t, s, pool, sctx)
	if again.ID != pinned.ID {
		t.Fatalf("session moved off a degraded proxy: got %s, want %s", again.ID, pinned.ID)
	}
}

func TestSessionReleasesDeadPin(t *testing.T) {
	pool, _ := testPool(t, 3)
	s := newTestStrategy(t, StrategySession, nil)

	sctx := NewSelectionContext()
	sctx.SessionID = "user-42"

	pinned := drawAndRevert(t, s, pool, sctx)

	// Kill the pinned proxy; the session must move to a live one.
	for i := 0; i < 10; i++ {
		pinned.StartRequest()
		pinned.FinishRequest(false, 10*time.Millisecond, 0.2)
	}

	replacement := drawAndRevert(t, s, pool, sctx)
	if replacement.ID == pinned.ID {
		t.Fatalf("session stayed pinned to a dead proxy")
	}

	// The new pin sticks as well.
	for i := 0; i < 5; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.ID != replacement.ID {
			t.Fatalf("re-pinned session moved from %s to %s", replacement, p)
		}
	}
}

func TestSessionsPinIndependently(t *testing.T) {
	pool, _ := testPool(t, 3)
	s := newTestStrategy(t, StrategySession, nil)

	pins := make(map[string]string)
	for _, sid := range []string{"a", "b", "c", "d"} {
		sctx := NewSelectionContext()
		sctx.SessionID = sid
		pins[sid] = drawAndRevert(t, s, pool, sctx).ID
	}

	// Every session still resolves to its own pin.
	for sid, want := range pins {
		sctx := NewSelectionContext()
		sctx.SessionID = sid
		if got := drawAndRevert(t, s, pool, sctx).ID; got != want {
			t.Errorf("session %s moved from %s to %s", sid, want, got)
		}
	}
}

func TestGeoTargetedNeverLeaksCountry(t *testing.T) {
	pool, _ := testGeoPool(t, "US", "US", "GB", "GB", "DE")
	s := newTestStrategy(t, StrategyGeoTargeted, nil)

	sctx := NewSelectionContext()
	sctx.TargetCountry = "GB"

	// With matching proxies present, no selection may ever fall outside
	// the requested country.
	for i := 0; i < 100; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.CountryCode != "GB" {
			t.Fatalf("selection %d returned country %s, want GB", i+1, p.CountryCode)
		}
	}
}

func TestGeoTargetedCountryInputNormalized(t *testing.T) {
	pool, _ := testGeoPool(t, "GB", "US")
	s := newTestStrategy(t, StrategyGeoTargeted, nil)

	sctx := NewSelectionContext()
	sctx.TargetCountry = " gb "

	for i := 0; i < 10; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.CountryCode != "GB" {
			t.Fatalf("selection returned country %s, want GB for lowercase input", p.CountryCode)
		}
	}
}

func TestGeoTargetedFallback(t *testing.T) {
	pool, _ := testGeoPool(t, "US", "DE")

	// Default options fall back to the whole pool for an unmatched country.
	s := newTestStrategy(t, StrategyGeoTargeted, nil)
	sctx := NewSelectionContext()
	sctx.TargetCountry = "FR"
	if _, err := s.Select(pool, sctx); err != nil {
		t.Errorf("Select() with fallback = %v, want a proxy from the full pool", err)
	}

	// Disabled fallback surfaces the empty filter result instead.
	strict := newTestStrategy(t, StrategyGeoTargeted, &StrategyOptions{GeoFallbackDisabled: true})
	_, err := strict.Select(pool, sctx)
	if !IsPoolEmpty(err) {
		t.Fatalf("Select() without fallback = %v, want a pool empty error", err)
	}
	if want := "no proxies available for country FR"; err.Error() != want {
		t.Errorf("Select() error = %q, want %q", err.Error(), want)
	}
}

func TestGeoTargetedRegionFilter(t *testing.T) {
	pool := NewPool()
	entries := []ProxyEntry{
		{URL: "http://proxy1.example.com:8080", CountryCode: "DE", Region: "EU"},
		{URL: "http://proxy2.example.com:8080", CountryCode: "FR", Region: "EU"},
		{URL: "http://proxy3.example.com:8080", CountryCode: "US", Region: "NA"},
	}
	for _, entry := range entries {
		p, err := NewProxyFromEntry(entry)
		if err != nil {
			t.Fatalf("NewProxyFromEntry() returned error: %v", err)
		}
		if err := pool.Add(p); err != nil {
			t.Fatalf("Add() returned error: %v", err)
		}
	}

	s := newTestStrategy(t, StrategyGeoTargeted, nil)
	sctx := NewSelectionContext()
	sctx.TargetRegion = "EU"

	for i := 0; i < 20; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.Region != "EU" {
			t.Fatalf("selection returned region %s, want EU", p.Region)
		}
	}
}

func TestGeoTargetedCountryBeatsRegion(t *testing.T) {
	pool := NewPool()
	entries := []ProxyEntry{
		{URL: "http://proxy1.example.com:8080", CountryCode: "GB", Region: "EU"},
		{URL: "http://proxy2.example.com:8080", CountryCode: "US", Region: "NA"},
	}
	for _, entry := range entries {
		p, err := NewProxyFromEntry(entry)
		if err != nil {
			t.Fatalf("NewProxyFromEntry() returned error: %v", err)
		}
		if err := pool.Add(p); err != nil {
			t.Fatalf("Add() returned error: %v", err)
		}
	}

	s := newTestStrategy(t, StrategyGeoTargeted, nil)
	sctx := NewSelectionContext()
	sctx.TargetCountry = "GB"
	sctx.TargetRegion = "NA"

	// Both targets set: the country filter wins.
	for i := 0; i < 10; i++ {
		p := drawAndRevert(t, s, pool, sctx)
		if p.CountryCode != "GB" {
			t.Fatalf("selection returned country %s, want GB when both targets are set", p.CountryCode)
		}
	}
}

func TestGeoTargetedSecondaryStrategy(t *testing.T) {
	pool, proxies := testGeoPool(t, "GB", "GB", "US")

	// The round robin secondary alternates over the geo-filtered set.
	s := newTestStrategy(t, StrategyGeoTargeted, &StrategyOptions{GeoSecondaryStrategy: StrategyRoundRobin})
	sctx := NewSelectionContext()
	sctx.TargetCountry = "GB"

	counts := make(map[string]int)
	for i := 0; i < 10; i++ {
		counts[drawAndRevert(t, s, pool, sctx).ID]++
	}
	if counts[proxies[0].ID] != 5 || counts[proxies[1].ID] != 5 {
		t.Errorf("round robin secondary distribution = %v, want 5/5 across the GB proxies", counts)
	}

	// Composite strategies cannot serve as a secondary.
	if _, err := NewStrategy(StrategyGeoTargeted, &StrategyOptions{GeoSecondaryStrategy: StrategySession}); !IsInvalidArgument(err) {
		t.Errorf("NewStrategy() accepted %s as geo secondary", StrategySession)
	}
	if _, err := NewStrategy(StrategyGeoTargeted, &StrategyOptions{GeoSecondaryStrategy: StrategyGeoTargeted}); !IsInvalidArgument(err) {
		t.Errorf("NewStrategy() accepted %s as geo secondary", StrategyGeoTargeted)
	}
}

func TestCostAwareFavorsFreeProxies(t *testing.T) {
	pool := NewPool()
	entries := []ProxyEntry{
		{URL: "http://free.example.com:8080", CostPerRequest: 0},
		{URL: "http://paid1.example.com:8080", CostPerRequest: 1.0},
		{URL: "http://paid2.example.com:8080", CostPerRequest: 1.0},
	}
	var freeID string
	for i, entry := range entries {
		p, err := NewProxyFromEntry(entry)
		if err != nil {
			t.Fatalf("NewProxyFromEntry() returned error: %v", err)
		}
		if i == 0 {
			freeID = p.ID
		}
		if err := pool.Add(p); err != nil {
			t.Fatalf("Add() returned error: %v", err)
		}
	}

	s := newTestStrategy(t, StrategyCostAware, nil)

	// Default boost weighs the free proxy 10x a cost-1.0 proxy, so its
	// expected share is 10/12 of all draws.
	free := 0
	for i := 0; i < 1000; i++ {
		if drawAndRevert(t, s, pool, NewSelectionContext()).ID == freeID {
			free++
		}
	}
	if free <= 650 {
		t.Errorf("free proxy selected %d/1000 times, want more than 650", free)
	}
}

func TestCostAwareMaxCostExcludes(t *testing.T) {
	pool := NewPool()
	entries := []ProxyEntry{
		{URL: "http://cheap.example.com:8080", CostPerRequest: 0.2},
		{URL: "http://pricey.example.com:8080", CostPerRequest: 0.8},
	}
	var priceyID string
	for i, entry := range entries {
		p, err := NewProxyFromEntry(entry)
		if err != nil {
			t.Fatalf("NewProxyFromEntry() returned error: %v", err)
		}
		if i == 1 {
			priceyID = p.ID
		}
		if err := pool.Add(p); err != nil {
			t.Fatalf("Add() returned error: %v", err)
		}
	}

	s := newTestStrategy(t, StrategyCostAware, &StrategyOptions{MaxCostPerRequest: 0.5})
	for i := 0; i < 200; i++ {
		if drawAndRevert(t, s, pool, NewSelectionContext()).ID == priceyID {
			t.Fatalf("selected a proxy above the cost limit")
		}
	}

	// A limit below every proxy's cost empties the candidate set.
	strict := newTestStrategy(t, StrategyCostAware, &StrategyOptions{MaxCostPerRequest: 0.1})
	_, err := strict.Select(pool, NewSelectionContext())
	if !IsPoolEmpty(err) {
		t.Fatalf("Select() = %v, want a pool empty error", err)
	}
	if want := "no proxies within cost limit 0.1000 per request"; err.Error() != want {
		t.Errorf("Select() error = %q, want %q", err.Error(), want)
	}
}
