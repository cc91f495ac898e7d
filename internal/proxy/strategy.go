// internal/proxy/strategy.go
package proxy

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"
)

// Strategy selects one proxy per request out of the pool. Implementations
// are safe for concurrent use. Select increments the chosen proxy's
// in-flight counters before returning; RecordResult settles them once the
// request finishes.
type Strategy interface {
	// Name returns the strategy's identifier.
	Name() StrategyType

	// Select returns exactly one eligible proxy. It fails with a
	// PoolEmpty error when no proxy survives filtering; the error
	// message names the filter that emptied the set.
	Select(pool *Pool, sctx *SelectionContext) (*Proxy, error)

	// RecordResult feeds a request outcome back into the strategy's
	// bookkeeping and the proxy's counters.
	RecordResult(p *Proxy, success bool, responseTime time.Duration)

	// Configure applies strategy options. Passing nil selects defaults.
	Configure(opts *StrategyOptions) error

	// ValidateContext checks whether a selection context satisfies the
	// strategy's requirements before any selection work happens.
	ValidateContext(sctx *SelectionContext) error
}

// StrategyOptions collects the tunables of the individual strategies.
// Zero fields are replaced with defaults by Configure.
type StrategyOptions struct {
	// SessionStickiness is how long a session keeps its assigned proxy.
	SessionStickiness time.Duration
	// GeoFallbackDisabled makes geo-targeted selection fail instead of
	// falling back to the full candidate set when no proxy matches the
	// requested location. The zero value keeps the fallback on.
	GeoFallbackDisabled bool
	// GeoSecondaryStrategy picks within the geo-filtered candidates.
	GeoSecondaryStrategy StrategyType
	// MaxCostPerRequest excludes proxies above this cost; 0 disables it.
	MaxCostPerRequest float64
	// FreeProxyBoost is the selection weight of a free proxy relative to
	// a proxy costing 1 per request.
	FreeProxyBoost float64
	// EMAAlpha is the smoothing factor for response-time averaging.
	EMAAlpha float64
}

// DefaultStrategyOptions returns the documented defaults.
func DefaultStrategyOptions() *StrategyOptions {
	return &StrategyOptions{
		SessionStickiness:    time.Hour,
		GeoSecondaryStrategy: StrategyLeastUsed,
		FreeProxyBoost:       10,
		EMAAlpha:             0.2,
	}
}

// normalizeOptions fills zero fields with defaults and returns a private
// copy so later caller mutations cannot reach into a running strategy.
func normalizeOptions(opts *StrategyOptions) *StrategyOptions {
	def := DefaultStrategyOptions()
	if opts == nil {
		return def
	}

	out := *opts
	if out.SessionStickiness <= 0 {
		out.SessionStickiness = def.SessionStickiness
	}
	if out.GeoSecondaryStrategy == "" {
		out.GeoSecondaryStrategy = def.GeoSecondaryStrategy
	}
	if out.FreeProxyBoost <= 0 {
		out.FreeProxyBoost = def.FreeProxyBoost
	}
	if out.EMAAlpha <= 0 || out.EMAAlpha > 1 {
		out.EMAAlpha = def.EMAAlpha
	}
	return &out
}

// NewStrategy builds a configured strategy by type.
func NewStrategy(strategyType StrategyType, opts *StrategyOptions) (Strategy, error) {
	var s Strategy
	switch strategyType {
	case StrategyRoundRobin:
		s = &roundRobinStrategy{}
	case StrategyRandom:
		s = &randomStrategy{}
	case StrategyLeastUsed:
		s = &leastUsedStrategy{}
	case StrategyWeighted:
		s = &weightedStrategy{}
	case StrategyPerformanceBased:
		s = &performanceStrategy{}
	case StrategySession:
		s = newSessionStrategy()
	case StrategyGeoTargeted:
		s = &geoStrategy{}
	case StrategyCostAware:
		s = &costAwareStrategy{}
	default:
		return nil, NewInvalidArgumentError(fmt.Sprintf("unknown strategy %q", strategyType))
	}

	if err := s.Configure(opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Proxy selection uses math/rand seeded from crypto/rand so rotation
// patterns are not trivially predictable across restarts.
var (
	rngMu sync.Mutex
	rng   = mrand.New(mrand.NewSource(secureSeed()))
)

func secureSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}

func randomInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Int63n(n)
}

func randomFloat64() float64 {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Float64()
}

// eligibleCandidates returns the pool's proxies in insertion order minus
// already-failed ids, circuit-blocked ids and dead proxies.
func eligibleCandidates(pool *Pool, sctx *SelectionContext) []*Proxy {
	snapshot := pool.Snapshot()
	out := make([]*Proxy, 0, len(snapshot))
	for _, p := range snapshot {
		if sctx != nil && sctx.isExcluded(p.ID) {
			continue
		}
		if p.HealthStatus() == HealthDead {
			continue
		}
		out = append(out, p)
	}
	return out
}

// selectionCandidates applies the common filters and converts an empty
// result into a PoolEmpty error naming the responsible filter.
func selectionCandidates(pool *Pool, sctx *SelectionContext) ([]*Proxy, error) {
	if pool == nil || pool.Len() == 0 {
		return nil, NewPoolEmptyError("proxy pool is empty")
	}

	candidates := eligibleCandidates(pool, sctx)
	if len(candidates) == 0 {
		if sctx != nil && (len(sctx.FailedProxyIDs) > 0 || len(sctx.blockedIDs) > 0) {
			return nil, NewPoolEmptyError("no healthy proxies after excluding failed ids")
		}
		return nil, NewPoolEmptyError("no healthy proxies in pool")
	}
	return candidates, nil
}

// candidatePicker picks one proxy out of a non-empty candidate list.
// The basic strategies implement it so composite strategies can delegate
// their final pick.
type candidatePicker interface {
	pickFrom(candidates []*Proxy) (*Proxy, error)
}

// selectAndStart runs the common selection pipeline: filter, pick, then
// mark the chosen proxy's request as started.
func selectAndStart(pool *Pool, sctx *SelectionContext, picker candidatePicker) (*Proxy, error) {
	candidates, err := selectionCandidates(pool, sctx)
	if err != nil {
		return nil, err
	}

	chosen, err := picker.pickFrom(candidates)
	if err != nil {
		return nil, err
	}

	chosen.StartRequest()
	return chosen, nil
}

// weightedDraw picks a candidate with probability proportional to its
// weight. A non-positive weight total degrades to a uniform pick.
func weightedDraw(candidates []*Proxy, weights []float64, total float64) *Proxy {
	if total <= 0 {
		return candidates[randomIntn(len(candidates))]
	}

	r := randomFloat64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// baseStrategy carries the shared options plumbing and result recording.
type baseStrategy struct {
	opts *StrategyOptions
}

func (b *baseStrategy) Configure(opts *StrategyOptions) error {
	b.opts = normalizeOptions(opts)
	return nil
}

func (b *baseStrategy) RecordResult(p *Proxy, success bool, responseTime time.Duration) {
	if p == nil {
		return
	}
	p.FinishRequest(success, responseTime, b.opts.EMAAlpha)
}

func (b *baseStrategy) ValidateContext(*SelectionContext) error {
	return nil
}

// roundRobinStrategy walks the candidate list with a monotonic cursor.
// The cursor lives on the strategy instance, so pool membership changes
// shift the mapping but never stall it.
type roundRobinStrategy struct {
	baseStrategy
	mu     sync.Mutex
	cursor uint64
}

func (s *roundRobinStrategy) Name() StrategyType {
	return StrategyRoundRobin
}

func (s *roundRobinStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	return selectAndStart(pool, sctx, s)
}

func (s *roundRobinStrategy) pickFrom(candidates []*Proxy) (*Proxy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := int(s.cursor % uint64(len(candidates)))
	s.cursor++
	return candidates[idx], nil
}

// randomStrategy picks uniformly over the candidates.
type randomStrategy struct {
	baseStrategy
}

func (s *randomStrategy) Name() StrategyType {
	return StrategyRandom
}

func (s *randomStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	return selectAndStart(pool, sctx, s)
}

func (s *randomStrategy) pickFrom(candidates []*Proxy) (*Proxy, error) {
	return candidates[randomIntn(len(candidates))], nil
}

// leastUsedStrategy picks the candidate with the fewest completed
// requests; ties go to the earliest-inserted candidate.
type leastUsedStrategy struct {
	baseStrategy
}

func (s *leastUsedStrategy) Name() StrategyType {
	return StrategyLeastUsed
}

func (s *leastUsedStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	return selectAndStart(pool, sctx, s)
}

func (s *leastUsedStrategy) pickFrom(candidates []*Proxy) (*Proxy, error) {
	chosen := candidates[0]
	lowest := chosen.TotalRequests()
	for _, p := range candidates[1:] {
		if n := p.TotalRequests(); n < lowest {
			chosen = p
			lowest = n
		}
	}
	return chosen, nil
}

// weightedStrategy draws proportionally to each candidate's observed
// success rate. Laplace smoothing gives zero-history proxies a neutral,
// non-zero weight.
type weightedStrategy struct {
	baseStrategy
}

func (s *weightedStrategy) Name() StrategyType {
	return StrategyWeighted
}

func (s *weightedStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	return selectAndStart(pool, sctx, s)
}

func (s *weightedStrategy) pickFrom(candidates []*Proxy) (*Proxy, error) {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, p := range candidates {
		w := (float64(p.TotalSuccesses()) + 1) / (float64(p.TotalRequests()) + 2)
		weights[i] = w
		total += w
	}
	return weightedDraw(candidates, weights, total), nil
}
