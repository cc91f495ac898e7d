// internal/proxy/health.go - active pool health probing
package proxy

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// DefaultHealthCheckURL returns 204 with no body, keeping probes cheap.
const DefaultHealthCheckURL = "https://www.google.com/generate_204"

const defaultHealthCheckTimeout = 10 * time.Second

// HealthCheckResult is the outcome of probing one proxy.
type HealthCheckResult struct {
	ProxyID  string        `json:"proxy_id"`
	URL      string        `json:"url"`
	Healthy  bool          `json:"healthy"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// HealthChecker probes proxies by issuing a request through each one
// and feeds the outcomes into the same per-proxy counters that live
// traffic updates, so health states converge either way.
type HealthChecker struct {
	transport   Transport
	checkURL    string
	timeout     time.Duration
	concurrency int
}

// NewHealthChecker creates a checker over the given transport. An empty
// checkURL uses DefaultHealthCheckURL; a zero timeout uses 10s.
func NewHealthChecker(transport Transport, checkURL string, timeout time.Duration) *HealthChecker {
	if checkURL == "" {
		checkURL = DefaultHealthCheckURL
	}
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}
	return &HealthChecker{
		transport:   transport,
		checkURL:    checkURL,
		timeout:     timeout,
		concurrency: 5,
	}
}

// Check probes a single proxy and records the outcome on its counters.
func (hc *HealthChecker) Check(ctx context.Context, p *Proxy) HealthCheckResult {
	result := HealthCheckResult{ProxyID: p.ID, URL: p.URL.Redacted()}

	req := &Request{
		Method:  http.MethodGet,
		URL:     hc.checkURL,
		Timeout: hc.timeout,
	}

	p.StartRequest()
	start := time.Now()
	resp, err := hc.transport.Perform(ctx, req, p.URL)
	result.Duration = time.Since(start)

	if err != nil {
		result.Err = err
	} else {
		result.Healthy = resp.StatusCode >= 200 && resp.StatusCode < 400
	}
	p.FinishRequest(result.Healthy, result.Duration, DefaultStrategyOptions().EMAAlpha)
	return result
}

// CheckAll probes every given proxy with bounded concurrency. Results
// are returned in input order.
func (hc *HealthChecker) CheckAll(ctx context.Context, proxies []*Proxy) []HealthCheckResult {
	results := make([]HealthCheckResult, len(proxies))

	sem := make(chan struct{}, hc.concurrency)
	var wg sync.WaitGroup
	for i, p := range proxies {
		wg.Add(1)
		go func(i int, p *Proxy) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = hc.Check(ctx, p)
		}(i, p)
	}
	wg.Wait()
	return results
}

// HealthCheck probes every pooled proxy through the rotator's transport.
func (r *Rotator) HealthCheck(ctx context.Context, checkURL string, timeout time.Duration) []HealthCheckResult {
	checker := NewHealthChecker(r.transport, checkURL, timeout)
	results := checker.CheckAll(ctx, r.pool.Snapshot())

	healthy := 0
	for _, res := range results {
		if res.Healthy {
			healthy++
		}
	}
	rotatorLogger.Infof("health check: %d/%d proxies healthy", healthy, len(results))
	return results
}
