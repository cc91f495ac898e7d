// internal/proxy/types.go
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProxyType represents the type of proxy
type ProxyType string

const (
	ProxyTypeHTTP   ProxyType = "http"
	ProxyTypeHTTPS  ProxyType = "https"
	ProxyTypeSOCKS5 ProxyType = "socks5"
)

// HealthStatus represents the observed health of a proxy
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthDead      HealthStatus = "dead"
)

// Consecutive-failure counts at which a proxy's health is downgraded.
// A dead proxy is never selected again until it is removed and re-added.
const (
	degradedAfterFailures  = 1
	unhealthyAfterFailures = 3
	deadAfterFailures      = 10
)

// StrategyType identifies a selection strategy
type StrategyType string

const (
	StrategyRoundRobin       StrategyType = "round_robin"
	StrategyRandom           StrategyType = "random"
	StrategyLeastUsed        StrategyType = "least_used"
	StrategyWeighted         StrategyType = "weighted"
	StrategyPerformanceBased StrategyType = "performance_based"
	StrategySession          StrategyType = "session"
	StrategyGeoTargeted      StrategyType = "geo_targeted"
	StrategyCostAware        StrategyType = "cost_aware"
)

// ProxySource records where a proxy entry came from
type ProxySource string

const (
	SourceUser    ProxySource = "user"
	SourceFetched ProxySource = "fetched"
)

// defaultPorts maps proxy schemes to their conventional ports
var defaultPorts = map[string]string{
	"http":   "80",
	"https":  "443",
	"socks5": "1080",
}

// Proxy is a single upstream forwarding endpoint together with its live
// counters. Identity fields (ID, URL, CountryCode, Region, CostPerRequest,
// Source) are set at construction and never mutated afterwards; counters
// are guarded by the proxy's own mutex and move only through StartRequest
// and FinishRequest.
type Proxy struct {
	ID             string
	URL            *url.URL
	CountryCode    string
	Region         string
	CostPerRequest float64
	Source         ProxySource

	mu                  sync.RWMutex
	health              HealthStatus
	totalRequests       int64
	totalSuccesses      int64
	totalFailures       int64
	consecutiveFailures int
	requestsStarted     int64
	requestsCompleted   int64
	requestsActive      int64
	emaResponseTimeMs   float64
	emaSamples          int64
}

// ProxyEntry is the external representation of a proxy used by
// configuration files, stores and source fetchers.
type ProxyEntry struct {
	URL            string  `yaml:"url" json:"url"`
	CountryCode    string  `yaml:"country_code,omitempty" json:"country_code,omitempty"`
	Region         string  `yaml:"region,omitempty" json:"region,omitempty"`
	CostPerRequest float64 `yaml:"cost_per_request,omitempty" json:"cost_per_request,omitempty"`
	Source         string  `yaml:"source,omitempty" json:"source,omitempty"`
}

// NewProxy creates a proxy from a raw URL string. The URL is normalized
// (scheme defaulted to http, host lowercased, default port filled in) and
// the proxy gets a generated id that stays stable for the process lifetime.
func NewProxy(rawURL string) (*Proxy, error) {
	u, err := NormalizeProxyURL(rawURL)
	if err != nil {
		return nil, err
	}

	return &Proxy{
		ID:     uuid.NewString(),
		URL:    u,
		Source: SourceUser,
		health: HealthUnknown,
	}, nil
}

// NewProxyFromEntry creates a proxy from an external entry, carrying over
// geographic and cost metadata.
func NewProxyFromEntry(entry ProxyEntry) (*Proxy, error) {
	p, err := NewProxy(entry.URL)
	if err != nil {
		return nil, err
	}

	p.CountryCode = strings.ToUpper(strings.TrimSpace(entry.CountryCode))
	p.Region = strings.ToUpper(strings.TrimSpace(entry.Region))
	p.CostPerRequest = entry.CostPerRequest
	if entry.Source != "" {
		p.Source = ProxySource(entry.Source)
	}
	return p, nil
}

// NormalizeProxyURL parses and normalizes a proxy URL. A missing scheme
// defaults to http; a missing port is filled with the scheme's
// conventional port. Credentials are preserved.
func NormalizeProxyURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("proxy URL is empty")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch ProxyType(scheme) {
	case ProxyTypeHTTP, ProxyTypeHTTPS, ProxyTypeSOCKS5:
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	u.Scheme = scheme

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", rawURL)
	}

	port := u.Port()
	if port == "" {
		port = defaultPorts[scheme]
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return nil, fmt.Errorf("proxy URL %q has invalid port %q", rawURL, port)
	}

	u.Host = net.JoinHostPort(host, port)
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// StartRequest marks the beginning of a request through this proxy.
// Called by strategies at selection time.
func (p *Proxy) StartRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requestsStarted++
	p.requestsActive++
}

// FinishRequest records the outcome of a request started earlier. The
// response time feeds an exponential moving average with the given
// smoothing factor. Health is downgraded on consecutive failures and
// restored on success.
func (p *Proxy) FinishRequest(success bool, responseTime time.Duration, emaAlpha float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.requestsActive > 0 {
		p.requestsActive--
	}
	p.requestsCompleted++
	p.totalRequests++

	if success {
		p.totalSuccesses++
		p.consecutiveFailures = 0
		p.health = HealthHealthy
	} else {
		p.totalFailures++
		p.consecutiveFailures++
		switch {
		case p.consecutiveFailures >= deadAfterFailures:
			p.health = HealthDead
		case p.consecutiveFailures >= unhealthyAfterFailures:
			p.health = HealthUnhealthy
		case p.consecutiveFailures >= degradedAfterFailures:
			p.health = HealthDegraded
		}
	}

	if responseTime > 0 {
		ms := float64(responseTime) / float64(time.Millisecond)
		if p.emaSamples == 0 {
			p.emaResponseTimeMs = ms
		} else {
			p.emaResponseTimeMs = p.emaResponseTimeMs*(1-emaAlpha) + ms*emaAlpha
		}
		p.emaSamples++
	}
}

// cancelStart reverts StartRequest for a selection that was abandoned
// before any request went out, so the in-flight gauge stays accurate.
func (p *Proxy) cancelStart() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.requestsActive > 0 {
		p.requestsActive--
	}
	if p.requestsStarted > 0 {
		p.requestsStarted--
	}
}

// HealthStatus returns the proxy's current health.
func (p *Proxy) HealthStatus() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.health
}

// TotalRequests returns the number of completed requests.
func (p *Proxy) TotalRequests() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalRequests
}

// TotalSuccesses returns the number of successful requests.
func (p *Proxy) TotalSuccesses() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalSuccesses
}

// TotalFailures returns the number of failed requests.
func (p *Proxy) TotalFailures() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalFailures
}

// ConsecutiveFailures returns the current run of failures.
func (p *Proxy) ConsecutiveFailures() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.consecutiveFailures
}

// RequestsActive returns the in-flight request gauge.
func (p *Proxy) RequestsActive() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.requestsActive
}

// RequestsStarted returns the number of requests handed to this proxy.
func (p *Proxy) RequestsStarted() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.requestsStarted
}

// RequestsCompleted returns the number of requests that reported a result.
func (p *Proxy) RequestsCompleted() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.requestsCompleted
}

// EMAResponseTime returns the smoothed response time in milliseconds and
// whether any samples have been recorded yet.
func (p *Proxy) EMAResponseTime() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.emaResponseTimeMs, p.emaSamples > 0
}

// SuccessRate returns the fraction of completed requests that succeeded.
// A proxy with no history reports 0.
func (p *Proxy) SuccessRate() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.totalRequests == 0 {
		return 0
	}
	return float64(p.totalSuccesses) / float64(p.totalRequests)
}

// String returns a log-safe description with credentials redacted.
func (p *Proxy) String() string {
	return p.URL.Redacted()
}

// Snapshot returns a copy of the proxy's current counters.
func (p *Proxy) Snapshot() ProxyStat {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return ProxyStat{
		ID:                  p.ID,
		URL:                 p.URL.Redacted(),
		Health:              p.health,
		CountryCode:         p.CountryCode,
		Region:              p.Region,
		Source:              p.Source,
		CostPerRequest:      p.CostPerRequest,
		TotalRequests:       p.totalRequests,
		TotalSuccesses:      p.totalSuccesses,
		TotalFailures:       p.totalFailures,
		ConsecutiveFailures: p.consecutiveFailures,
		RequestsActive:      p.requestsActive,
		AvgResponseTimeMs:   p.emaResponseTimeMs,
	}
}

// SelectionContext carries per-call targeting hints and the set of proxies
// already tried during the current request. It is never persisted.
type SelectionContext struct {
	FailedProxyIDs map[string]struct{}
	SessionID      string
	TargetCountry  string
	TargetRegion   string
	Metadata       map[string]interface{}

	// blockedIDs holds proxies whose circuit breaker refused them for this
	// call. Populated by the rotator before selection.
	blockedIDs map[string]struct{}
}

// NewSelectionContext creates an empty selection context.
func NewSelectionContext() *SelectionContext {
	return &SelectionContext{
		FailedProxyIDs: make(map[string]struct{}),
	}
}

// MarkFailed records a proxy as already tried for this call.
func (c *SelectionContext) MarkFailed(id string) {
	if c.FailedProxyIDs == nil {
		c.FailedProxyIDs = make(map[string]struct{})
	}
	c.FailedProxyIDs[id] = struct{}{}
}

// HasFailed reports whether a proxy was already tried for this call.
func (c *SelectionContext) HasFailed(id string) bool {
	_, ok := c.FailedProxyIDs[id]
	return ok
}

func (c *SelectionContext) blockProxy(id string) {
	if c.blockedIDs == nil {
		c.blockedIDs = make(map[string]struct{})
	}
	c.blockedIDs[id] = struct{}{}
}

// clearBlocked drops temporary circuit blocks so the next attempt
// re-evaluates breaker availability. Failed ids are kept.
func (c *SelectionContext) clearBlocked() {
	c.blockedIDs = nil
}

func (c *SelectionContext) isExcluded(id string) bool {
	if c.HasFailed(id) {
		return true
	}
	_, blocked := c.blockedIDs[id]
	return blocked
}

// PoolStats is a point-in-time summary of the pool.
type PoolStats struct {
	TotalProxies     int   `json:"total_proxies"`
	HealthyProxies   int   `json:"healthy_proxies"`
	UnhealthyProxies int   `json:"unhealthy_proxies"`
	DeadProxies      int   `json:"dead_proxies"`
	TotalRequests    int64 `json:"total_requests"`
	TotalSuccesses   int64 `json:"total_successes"`
	TotalFailures    int64 `json:"total_failures"`
}

// ProxyStat is a point-in-time copy of a single proxy's counters.
type ProxyStat struct {
	ID                  string       `json:"id"`
	URL                 string       `json:"url"`
	Health              HealthStatus `json:"health"`
	CountryCode         string       `json:"country_code,omitempty"`
	Region              string       `json:"region,omitempty"`
	Source              ProxySource  `json:"source"`
	CostPerRequest      float64      `json:"cost_per_request"`
	TotalRequests       int64        `json:"total_requests"`
	TotalSuccesses      int64        `json:"total_successes"`
	TotalFailures       int64        `json:"total_failures"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	RequestsActive      int64        `json:"requests_active"`
	AvgResponseTimeMs   float64      `json:"avg_response_time_ms"`
}
