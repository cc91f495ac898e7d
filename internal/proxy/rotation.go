// internal/proxy/rotation.go - Advanced proxy rotation strategies
package proxy

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valpere/ProxyRotexter/internal/utils"
)

var rotationLogger = utils.NewComponentLogger("proxy-rotation")

// performanceStrategy weighs candidates inversely to their smoothed
// response time, so faster proxies are drawn more often. Proxies without
// a response-time sample yet are treated as average.
type performanceStrategy struct {
	baseStrategy
}

func (s *performanceStrategy) Name() StrategyType {
	return StrategyPerformanceBased
}

func (s *performanceStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	return selectAndStart(pool, sctx, s)
}

func (s *performanceStrategy) pickFrom(candidates []*Proxy) (*Proxy, error) {
	emas := make([]float64, len(candidates))
	sum := 0.0
	known := 0
	for i, p := range candidates {
		if ema, ok := p.EMAResponseTime(); ok && ema > 0 {
			emas[i] = ema
			sum += ema
			known++
		}
	}

	// Average latency stands in for proxies with no samples. With no
	// samples anywhere every weight is equal and the draw is uniform.
	average := 1.0
	if known > 0 {
		average = sum / float64(known)
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i := range candidates {
		ema := emas[i]
		if ema <= 0 {
			ema = average
		}
		w := 1 / ema
		weights[i] = w
		total += w
	}

	return weightedDraw(candidates, weights, total), nil
}

// sessionAssignment records which proxy a session is pinned to.
type sessionAssignment struct {
	proxyID    string
	assignedAt time.Time
}

// sessionStrategy pins every session id to one proxy for the stickiness
// window. Assignments expire lazily at lookup time and are replaced when
// the pinned proxy is no longer usable.
type sessionStrategy struct {
	baseStrategy
	mu          sync.Mutex
	assignments map[string]sessionAssignment
}

func newSessionStrategy() *sessionStrategy {
	return &sessionStrategy{
		assignments: make(map[string]sessionAssignment),
	}
}

func (s *sessionStrategy) Name() StrategyType {
	return StrategySession
}

func (s *sessionStrategy) ValidateContext(sctx *SelectionContext) error {
	if sctx == nil || sctx.SessionID == "" {
		return NewInvalidArgumentError("session strategy requires a session id in the selection context")
	}
	return nil
}

func (s *sessionStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	if err := s.ValidateContext(sctx); err != nil {
		return nil, err
	}

	candidates, err := selectionCandidates(pool, sctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	s.mu.Lock()
	if a, ok := s.assignments[sctx.SessionID]; ok && now.Sub(a.assignedAt) < s.opts.SessionStickiness {
		for _, p := range candidates {
			if p.ID == a.proxyID && sessionUsable(p) {
				s.mu.Unlock()
				p.StartRequest()
				return p, nil
			}
		}
	}

	// No usable assignment: pick uniformly and pin the session to it.
	chosen := candidates[randomIntn(len(candidates))]
	s.assignments[sctx.SessionID] = sessionAssignment{proxyID: chosen.ID, assignedAt: now}
	s.mu.Unlock()

	chosen.StartRequest()
	return chosen, nil
}

// sessionUsable reports whether a pinned proxy may keep serving its
// session. A degraded proxy keeps the pin; unhealthy and dead ones
// release it.
func sessionUsable(p *Proxy) bool {
	switch p.HealthStatus() {
	case HealthUnhealthy, HealthDead:
		return false
	default:
		return true
	}
}

// geoStrategy narrows the candidates to a target country or region and
// lets a secondary strategy pick within the narrowed set. Country takes
// precedence when both targets are given.
type geoStrategy struct {
	baseStrategy
	secondary candidatePicker
}

func (s *geoStrategy) Name() StrategyType {
	return StrategyGeoTargeted
}

func (s *geoStrategy) Configure(opts *StrategyOptions) error {
	if err := s.baseStrategy.Configure(opts); err != nil {
		return err
	}

	switch s.opts.GeoSecondaryStrategy {
	case StrategyRoundRobin:
		s.secondary = &roundRobinStrategy{}
	case StrategyRandom:
		s.secondary = &randomStrategy{}
	case StrategyLeastUsed:
		s.secondary = &leastUsedStrategy{}
	case StrategyWeighted:
		s.secondary = &weightedStrategy{}
	case StrategyPerformanceBased:
		s.secondary = &performanceStrategy{}
	default:
		return NewInvalidArgumentError(fmt.Sprintf("unsupported geo secondary strategy %q", s.opts.GeoSecondaryStrategy))
	}
	return nil
}

func (s *geoStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	candidates, err := selectionCandidates(pool, sctx)
	if err != nil {
		return nil, err
	}

	filtered := candidates
	switch {
	case sctx != nil && sctx.TargetCountry != "":
		country := strings.ToUpper(strings.TrimSpace(sctx.TargetCountry))
		filtered = filterByCountry(candidates, country)
		if len(filtered) == 0 {
			if s.opts.GeoFallbackDisabled {
				return nil, NewPoolEmptyError(fmt.Sprintf("no proxies available for country %s", country))
			}
			rotationLogger.Debugf("no proxies for country %s, falling back to any country", country)
			filtered = candidates
		}
	case sctx != nil && sctx.TargetRegion != "":
		region := strings.ToUpper(strings.TrimSpace(sctx.TargetRegion))
		filtered = filterByRegion(candidates, region)
		if len(filtered) == 0 {
			if s.opts.GeoFallbackDisabled {
				return nil, NewPoolEmptyError(fmt.Sprintf("no proxies available for region %s", region))
			}
			rotationLogger.Debugf("no proxies for region %s, falling back to any region", region)
			filtered = candidates
		}
	}

	chosen, err := s.secondary.pickFrom(filtered)
	if err != nil {
		return nil, err
	}

	chosen.StartRequest()
	return chosen, nil
}

func filterByCountry(candidates []*Proxy, country string) []*Proxy {
	out := make([]*Proxy, 0, len(candidates))
	for _, p := range candidates {
		if p.CountryCode == country {
			out = append(out, p)
		}
	}
	return out
}

func filterByRegion(candidates []*Proxy, region string) []*Proxy {
	out := make([]*Proxy, 0, len(candidates))
	for _, p := range candidates {
		if p.Region == region {
			out = append(out, p)
		}
	}
	return out
}

// costAwareStrategy prefers cheap proxies. Free proxies get a fixed
// boost weight; paid ones weigh in at the inverse of their per-request
// cost. Candidates above the configured cost ceiling are excluded before
// weighting.
type costAwareStrategy struct {
	baseStrategy
}

func (s *costAwareStrategy) Name() StrategyType {
	return StrategyCostAware
}

func (s *costAwareStrategy) Select(pool *Pool, sctx *SelectionContext) (*Proxy, error) {
	candidates, err := selectionCandidates(pool, sctx)
	if err != nil {
		return nil, err
	}

	if limit := s.opts.MaxCostPerRequest; limit > 0 {
		kept := make([]*Proxy, 0, len(candidates))
		for _, p := range candidates {
			if p.CostPerRequest <= limit {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			return nil, NewPoolEmptyError(fmt.Sprintf("no proxies within cost limit %.4f per request", limit))
		}
		candidates = kept
	}

	weights := make([]float64, len(candidates))
	total := 0.0
	for i, p := range candidates {
		w := s.opts.FreeProxyBoost
		if p.CostPerRequest > 0 {
			w = 1 / p.CostPerRequest
		}
		weights[i] = w
		total += w
	}

	chosen := weightedDraw(candidates, weights, total)
	chosen.StartRequest()
	return chosen, nil
}
