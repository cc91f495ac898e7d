// internal/proxy/rotator.go - Request orchestration with retry and circuit breaking
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valpere/ProxyRotexter/internal/utils"
)

var rotatorLogger = utils.NewComponentLogger("rotator")

// Transport performs a single HTTP exchange through one proxy. It
// returns a Response whenever an HTTP response arrived, whatever the
// status code, and an error only for transport level failures such as
// connect errors, timeouts, and TLS handshake problems.
type Transport interface {
	Perform(ctx context.Context, req *Request, proxyURL *url.URL) (*Response, error)
}

// CandidateFetcher supplies proxy candidates for bootstrapping an
// empty pool, typically from remote proxy lists.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context) ([]ProxyEntry, error)
}

// MetricsRecorder receives rotation events for export. Implementations
// must be safe for concurrent use.
type MetricsRecorder interface {
	RecordAttempt(proxyID string, success bool, duration time.Duration)
	RecordSelection(strategy string)
	RecordBootstrap(success bool, added int)
}

// Request describes one outgoing HTTP exchange.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// Timeout bounds a single attempt. Zero means the rotator default.
	Timeout time.Duration
}

// Response is the outcome of a completed exchange. StatusCode, Status,
// Headers, and Body come from the transport; ProxyID, ProxyURL,
// Attempts, and Duration are filled in by the rotator.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	ProxyID    string
	ProxyURL   string
	Attempts   int
	Duration   time.Duration
}

// IsSuccess reports whether the response carries a 2xx or 3xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

// RequestOptions carries per-call settings for Rotator.Request.
type RequestOptions struct {
	Headers map[string]string
	Body    []byte
	// Timeout bounds each attempt. Zero means the rotator default.
	Timeout time.Duration
	// SessionID pins the call to a sticky proxy under the session strategy.
	SessionID string
	// TargetCountry and TargetRegion steer the geo targeted strategy.
	TargetCountry string
	TargetRegion  string
}

// AsyncResult is delivered on the channel returned by RequestAsync.
type AsyncResult struct {
	Response *Response
	Err      error
}

// RotatorConfig configures a Rotator.
type RotatorConfig struct {
	Strategy        StrategyType           `yaml:"strategy" json:"strategy"`
	StrategyOptions *StrategyOptions       `yaml:"strategy_options,omitempty" json:"strategy_options,omitempty"`
	RetryPolicy     *RetryPolicy           `yaml:"-" json:"-"`
	CircuitBreaker  CircuitBreakerConfig   `yaml:"circuit_breaker" json:"circuit_breaker"`
	RequestTimeout  time.Duration          `yaml:"request_timeout" json:"request_timeout"`
}

// DefaultRotatorConfig returns a round robin rotator with the default
// retry policy and circuit breaker settings.
func DefaultRotatorConfig() RotatorConfig {
	return RotatorConfig{
		Strategy:       StrategyRoundRobin,
		RetryPolicy:    DefaultRetryPolicy(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		RequestTimeout: 30 * time.Second,
	}
}

// Rotator owns the proxy pool, the per proxy circuit breakers, the
// selection strategy, and the retry policy, and drives requests
// through them.
type Rotator struct {
	config    RotatorConfig
	pool      *Pool
	strategy  Strategy
	retry     *RetryPolicy
	transport Transport
	fetcher   CandidateFetcher

	breakerMu sync.RWMutex
	breakers  map[string]*CircuitBreaker

	bootstrapMu   sync.Mutex
	bootstrapDone bool
	bootstrapErr  error

	metricsMu sync.RWMutex
	metrics   MetricsRecorder
}

// NewRotator creates a Rotator. The transport is required; the fetcher
// may be nil, in which case an empty pool is a hard PoolEmpty error.
func NewRotator(config RotatorConfig, transport Transport, fetcher CandidateFetcher) (*Rotator, error) {
	if transport == nil {
		return nil, NewInvalidArgumentError("a transport is required")
	}
	if config.Strategy == "" {
		config.Strategy = StrategyRoundRobin
	}
	if config.RetryPolicy == nil {
		config.RetryPolicy = DefaultRetryPolicy()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}

	strategy, err := NewStrategy(config.Strategy, config.StrategyOptions)
	if err != nil {
		return nil, err
	}

	return &Rotator{
		config:    config,
		pool:      NewPool(),
		strategy:  strategy,
		retry:     config.RetryPolicy,
		transport: transport,
		fetcher:   fetcher,
		breakers:  make(map[string]*CircuitBreaker),
	}, nil
}

// SetMetricsRecorder attaches an optional metrics sink. Passing nil
// disables recording.
func (r *Rotator) SetMetricsRecorder(m MetricsRecorder) {
	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()
	r.metrics = m
}

func (r *Rotator) recorder() MetricsRecorder {
	r.metricsMu.RLock()
	defer r.metricsMu.RUnlock()
	return r.metrics
}

// AddProxy registers a proxy and its circuit breaker. Adding a proxy
// whose id is already present is an error.
func (r *Rotator) AddProxy(p *Proxy) error {
	if p == nil {
		return NewInvalidArgumentError("cannot add a nil proxy")
	}
	if err := r.pool.Add(p); err != nil {
		return err
	}
	r.breakerFor(p.ID)
	rotatorLogger.Debugf("added proxy %s to pool", p)
	return nil
}

// AddProxyURL normalizes a raw proxy URL, wraps it in a Proxy owned by
// the user, and adds it to the pool.
func (r *Rotator) AddProxyURL(rawURL string) (*Proxy, error) {
	p, err := NewProxy(rawURL)
	if err != nil {
		return nil, err
	}
	if err := r.AddProxy(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ContainsURL reports whether a proxy with the same normalized endpoint
// is already pooled. Credentials are not compared.
func (r *Rotator) ContainsURL(rawURL string) bool {
	u, err := NormalizeProxyURL(rawURL)
	if err != nil {
		return false
	}
	for _, p := range r.pool.Snapshot() {
		if p.URL.Host == u.Host {
			return true
		}
	}
	return false
}

// RemoveProxy drops a proxy and its breaker state. It reports whether
// the proxy was present.
func (r *Rotator) RemoveProxy(id string) bool {
	removed := r.pool.Remove(id)
	if removed {
		r.breakerMu.Lock()
		delete(r.breakers, id)
		r.breakerMu.Unlock()
		rotatorLogger.Debugf("removed proxy %s from pool", id)
	}
	return removed
}

// PoolSize returns the number of proxies currently registered.
func (r *Rotator) PoolSize() int {
	return r.pool.Len()
}

// Proxies returns a snapshot of per proxy statistics.
func (r *Rotator) Proxies() []ProxyStat {
	snapshot := r.pool.Snapshot()
	stats := make([]ProxyStat, 0, len(snapshot))
	for _, p := range snapshot {
		stats = append(stats, p.Snapshot())
	}
	return stats
}

// breakerFor returns the circuit breaker for a proxy id, creating it
// on first use.
func (r *Rotator) breakerFor(id string) *CircuitBreaker {
	r.breakerMu.RLock()
	cb, ok := r.breakers[id]
	r.breakerMu.RUnlock()
	if ok {
		return cb
	}

	r.breakerMu.Lock()
	defer r.breakerMu.Unlock()
	if cb, ok = r.breakers[id]; ok {
		return cb
	}
	cb = NewCircuitBreaker(r.config.CircuitBreaker)
	r.breakers[id] = cb
	return cb
}

// Get issues a GET request through the rotation engine.
func (r *Rotator) Get(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return r.Request(ctx, http.MethodGet, rawURL, opts)
}

// Post issues a POST request through the rotation engine.
func (r *Rotator) Post(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return r.Request(ctx, http.MethodPost, rawURL, opts)
}

// Put issues a PUT request through the rotation engine.
func (r *Rotator) Put(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return r.Request(ctx, http.MethodPut, rawURL, opts)
}

// Delete issues a DELETE request through the rotation engine.
func (r *Rotator) Delete(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return r.Request(ctx, http.MethodDelete, rawURL, opts)
}

// Head issues a HEAD request through the rotation engine.
func (r *Rotator) Head(ctx context.Context, rawURL string, opts *RequestOptions) (*Response, error) {
	return r.Request(ctx, http.MethodHead, rawURL, opts)
}

// RequestAsync runs Request in a goroutine and delivers the outcome on
// the returned channel. The channel is buffered, so the result is
// never lost even if the caller stops listening.
func (r *Rotator) RequestAsync(ctx context.Context, method, rawURL string, opts *RequestOptions) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		resp, err := r.Request(ctx, method, rawURL, opts)
		ch <- AsyncResult{Response: resp, Err: err}
		close(ch)
	}()
	return ch
}

// Request performs an HTTP exchange through a pool proxy, retrying
// transient failures on fresh proxies according to the retry policy.
// Proxies that failed during this call are excluded from subsequent
// attempts; circuit breaker availability is re-evaluated per attempt.
func (r *Rotator) Request(ctx context.Context, method, rawURL string, opts *RequestOptions) (*Response, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if err := validateTargetURL(rawURL); err != nil {
		return nil, err
	}

	sctx := r.buildSelectionContext(opts)
	if err := r.strategy.ValidateContext(sctx); err != nil {
		return nil, err
	}

	if err := r.ensurePopulated(ctx); err != nil {
		return nil, err
	}

	var (
		lastErr       error
		lastProxyURL  string
		previousDelay time.Duration
		attempts      int
	)

	for attempt := 0; attempt < r.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p, err := r.selectProxy(sctx)
		if err != nil {
			if attempts > 0 {
				// Every eligible proxy has been consumed; report the
				// underlying failure rather than an empty pool.
				return nil, NewConnectionError(lastErr, attempts, lastProxyURL)
			}
			return nil, err
		}

		attempts++
		resp, err := r.attempt(ctx, method, rawURL, opts, p)
		if err == nil {
			resp.Attempts = attempts
			return resp, nil
		}

		lastErr = err
		lastProxyURL = p.String()
		sctx.MarkFailed(p.ID)
		rotatorLogger.Debugf("attempt %d via %s failed: %v", attempts, p, err)

		if attempt < r.retry.MaxAttempts-1 {
			delay := r.retry.Delay(attempt, previousDelay)
			previousDelay = delay
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, NewConnectionError(lastErr, attempts, lastProxyURL)
}

func (r *Rotator) buildSelectionContext(opts *RequestOptions) *SelectionContext {
	sctx := NewSelectionContext()
	if opts != nil {
		sctx.SessionID = opts.SessionID
		sctx.TargetCountry = opts.TargetCountry
		sctx.TargetRegion = opts.TargetRegion
	}
	return sctx
}

// selectProxy filters circuit blocked proxies, asks the strategy for a
// pick, and claims the winner's breaker slot. Losing the claim race
// excludes that proxy and tries again.
func (r *Rotator) selectProxy(sctx *SelectionContext) (*Proxy, error) {
	sctx.clearBlocked()

	for tries := 0; tries <= r.pool.Len(); tries++ {
		snapshot := r.pool.Snapshot()
		if len(snapshot) == 0 {
			return nil, NewPoolEmptyError("proxy pool is empty")
		}

		available := 0
		for _, p := range snapshot {
			if sctx.HasFailed(p.ID) || p.HealthStatus() == HealthDead {
				continue
			}
			if r.breakerFor(p.ID).selectable() {
				available++
			} else {
				sctx.blockProxy(p.ID)
			}
		}
		if available == 0 && len(sctx.FailedProxyIDs) == 0 && len(sctx.blockedIDs) > 0 {
			return nil, NewPoolEmptyError("no proxies available: all circuits open")
		}

		p, err := r.strategy.Select(r.pool, sctx)
		if err != nil {
			return nil, err
		}
		if rec := r.recorder(); rec != nil {
			rec.RecordSelection(string(r.strategy.Name()))
		}

		if r.breakerFor(p.ID).IsAvailable() {
			return p, nil
		}

		// A concurrent caller claimed the half open trial slot between
		// the filter pass and now. Back the selection out and repick.
		p.cancelStart()
		sctx.blockProxy(p.ID)
	}

	return nil, NewPoolEmptyError("no proxies available: all circuits open")
}

// attempt performs one exchange through p and settles its outcome with
// the breaker and the strategy. A returned error means the attempt is
// retryable on another proxy; any returned response is final.
func (r *Rotator) attempt(ctx context.Context, method, rawURL string, opts *RequestOptions, p *Proxy) (*Response, error) {
	req := &Request{
		Method:  method,
		URL:     rawURL,
		Timeout: r.config.RequestTimeout,
	}
	if opts != nil {
		req.Headers = opts.Headers
		req.Body = opts.Body
		if opts.Timeout > 0 {
			req.Timeout = opts.Timeout
		}
	}

	breaker := r.breakerFor(p.ID)
	start := time.Now()
	resp, err := r.transport.Perform(ctx, req, p.URL)
	elapsed := time.Since(start)

	if err != nil {
		breaker.RecordFailure()
		r.strategy.RecordResult(p, false, elapsed)
		r.recordAttempt(p.ID, false, elapsed)
		return nil, fmt.Errorf("request via %s failed: %w", p, err)
	}

	if !resp.IsSuccess() && r.retry.IsRetryableStatus(resp.StatusCode) {
		breaker.RecordFailure()
		r.strategy.RecordResult(p, false, elapsed)
		r.recordAttempt(p.ID, false, elapsed)
		return nil, fmt.Errorf("retryable status %d via %s", resp.StatusCode, p)
	}

	// Success, or a status the policy treats as final. Either way the
	// proxy itself worked, so its breaker and counters record success.
	breaker.RecordSuccess()
	r.strategy.RecordResult(p, true, elapsed)
	r.recordAttempt(p.ID, true, elapsed)

	resp.ProxyID = p.ID
	resp.ProxyURL = p.String()
	resp.Duration = elapsed
	return resp, nil
}

func (r *Rotator) recordAttempt(proxyID string, success bool, duration time.Duration) {
	if rec := r.recorder(); rec != nil {
		rec.RecordAttempt(proxyID, success, duration)
	}
}

// ensurePopulated fetches candidates exactly once when the pool is
// empty and a fetcher is configured. Concurrent callers block until
// the fetch settles and then all observe the same outcome; a failed
// fetch is cached and never re-triggered.
func (r *Rotator) ensurePopulated(ctx context.Context) error {
	if r.pool.Len() > 0 {
		return nil
	}

	r.bootstrapMu.Lock()
	defer r.bootstrapMu.Unlock()

	if r.pool.Len() > 0 {
		return nil
	}
	if r.bootstrapDone {
		if r.bootstrapErr != nil {
			return r.bootstrapErr
		}
		return NewPoolEmptyError("proxy pool is empty")
	}
	r.bootstrapDone = true

	if r.fetcher == nil {
		return NewPoolEmptyError("proxy pool is empty")
	}

	rotatorLogger.Info("proxy pool is empty, fetching candidates")
	entries, err := r.fetcher.FetchCandidates(ctx)
	if err != nil {
		r.bootstrapErr = NewFetchFailedError(err)
		rotatorLogger.Errorf("candidate fetch failed: %v", err)
		if rec := r.recorder(); rec != nil {
			rec.RecordBootstrap(false, 0)
		}
		return r.bootstrapErr
	}

	added := 0
	for _, entry := range entries {
		p, perr := NewProxyFromEntry(entry)
		if perr != nil {
			rotatorLogger.Warnf("skipping candidate %q: %v", entry.URL, perr)
			continue
		}
		p.Source = SourceFetched
		if aerr := r.pool.Add(p); aerr != nil {
			rotatorLogger.Warnf("skipping candidate %q: %v", entry.URL, aerr)
			continue
		}
		r.breakerFor(p.ID)
		added++
	}

	if added == 0 {
		r.bootstrapErr = NewFetchFailedError(fmt.Errorf("fetch returned no usable proxies"))
		if rec := r.recorder(); rec != nil {
			rec.RecordBootstrap(false, 0)
		}
		return r.bootstrapErr
	}

	rotatorLogger.Infof("bootstrap added %d proxies to the pool", added)
	if rec := r.recorder(); rec != nil {
		rec.RecordBootstrap(true, added)
	}
	return nil
}

// GetPoolStats returns an aggregate snapshot of the pool.
func (r *Rotator) GetPoolStats() PoolStats {
	return r.pool.Stats()
}

// GetCircuitBreakerStates returns a copy of every breaker's state
// keyed by proxy id.
func (r *Rotator) GetCircuitBreakerStates() map[string]string {
	r.breakerMu.RLock()
	defer r.breakerMu.RUnlock()

	states := make(map[string]string, len(r.breakers))
	for id, cb := range r.breakers {
		states[id] = cb.State().String()
	}
	return states
}

func validateTargetURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return NewInvalidArgumentError("target url is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return NewInvalidArgumentError(fmt.Sprintf("invalid target url %q: %v", rawURL, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewInvalidArgumentError(fmt.Sprintf("unsupported target url scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return NewInvalidArgumentError(fmt.Sprintf("target url %q has no host", rawURL))
	}
	return nil
}
