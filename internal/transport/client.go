// internal/transport/client.go - HTTP exchange through a single proxy
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/utils"
)

var transportLogger = utils.NewComponentLogger("transport")

// Config tunes the HTTP transport.
type Config struct {
	// Timeout bounds an attempt when the request carries no timeout.
	Timeout time.Duration
	// MaxBodySize caps how much of a response body is read. Zero means
	// the default of 10 MiB.
	MaxBodySize int64
	// UserAgents overrides the rotated User-Agent list.
	UserAgents []string
	// RateLimit throttles requests per target host, in requests per
	// second. Zero disables throttling.
	RateLimit float64
	// RateBurst is the per-host burst allowance when RateLimit is set.
	RateBurst int
	// DefaultHeaders are applied to every request unless the caller
	// supplies the same header.
	DefaultHeaders map[string]string
	// TLS tunes certificate verification for proxied connections.
	TLS *TLSConfig
}

const defaultMaxBodySize = 10 << 20

// HTTPTransport performs one exchange per call through the proxy it is
// handed. It keeps one http.Client per proxy URL so connection pools
// are not rebuilt on every request, and rotates User-Agent headers.
// Safe for concurrent use.
type HTTPTransport struct {
	config    Config
	agents    *userAgentRotator
	tlsConfig *tls.Config

	clientMu sync.Mutex
	clients  map[string]*http.Client

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewHTTPTransport creates a transport with defaults filled in.
func NewHTTPTransport(config Config) *HTTPTransport {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}

	tlsConfig, err := config.TLS.buildTLSConfig()
	if err != nil {
		transportLogger.Errorf("invalid TLS configuration, using defaults: %v", err)
		tlsConfig = defaultTLSConfig()
	}

	return &HTTPTransport{
		config:    config,
		agents:    newUserAgentRotator(config.UserAgents),
		tlsConfig: tlsConfig,
		clients:   make(map[string]*http.Client),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Perform sends one request through proxyURL. Any HTTP response, whatever
// its status, is returned as a Response; an error is returned only for
// transport level failures, classified as a TransportError.
func (t *HTTPTransport) Perform(ctx context.Context, req *proxy.Request, proxyURL *url.URL) (*proxy.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if proxyURL == nil {
		return nil, fmt.Errorf("proxy URL is nil")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := t.waitForHost(ctx, req.URL); err != nil {
		return nil, err
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	t.setHeaders(httpReq, req.Headers)

	client := t.clientFor(proxyURL)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classify(err, proxyURL.Redacted())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.config.MaxBodySize))
	if err != nil {
		return nil, classify(err, proxyURL.Redacted())
	}

	transportLogger.Debugf("%s %s via %s -> %d (%d bytes)",
		req.Method, req.URL, proxyURL.Redacted(), resp.StatusCode, len(data))

	return &proxy.Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header.Clone(),
		Body:       data,
	}, nil
}

// clientFor returns the cached client for a proxy, creating it on first
// use. Timeouts are enforced per request through the context, not on the
// client, so one client can serve requests with different deadlines.
func (t *HTTPTransport) clientFor(proxyURL *url.URL) *http.Client {
	key := proxyURL.String()

	t.clientMu.Lock()
	defer t.clientMu.Unlock()

	if c, ok := t.clients[key]; ok {
		return c
	}

	c := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyURL(proxyURL),
			TLSClientConfig:     t.tlsConfig.Clone(),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.clients[key] = c
	return c
}

// waitForHost applies the per-host rate limit, if configured.
func (t *HTTPTransport) waitForHost(ctx context.Context, rawURL string) error {
	if t.config.RateLimit <= 0 {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid target url %q: %w", rawURL, err)
	}

	t.limiterMu.Lock()
	limiter, ok := t.limiters[u.Host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(t.config.RateLimit), t.config.RateBurst)
		t.limiters[u.Host] = limiter
	}
	t.limiterMu.Unlock()

	return limiter.Wait(ctx)
}

func (t *HTTPTransport) setHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("User-Agent", t.agents.next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	for key, value := range t.config.DefaultHeaders {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
}

// CloseIdleConnections drops pooled connections on every cached client.
func (t *HTTPTransport) CloseIdleConnections() {
	t.clientMu.Lock()
	defer t.clientMu.Unlock()

	for _, c := range t.clients {
		c.CloseIdleConnections()
	}
}
