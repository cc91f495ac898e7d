// pkg/api/api.go
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/ProxyRotexter/internal/config"
	"github.com/valpere/ProxyRotexter/internal/monitoring"
	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/sources"
	"github.com/valpere/ProxyRotexter/internal/store"
	"github.com/valpere/ProxyRotexter/internal/transport"
	"github.com/valpere/ProxyRotexter/internal/utils"
)

var clientLogger = utils.NewComponentLogger("api")

// Client is the assembled rotation engine: a rotator over the HTTP
// transport, with the configured candidate sources, store, and stats
// server attached. Create one with NewClient and release it with Close.
type Client struct {
	config    *Config
	rotator   *proxy.Rotator
	transport *transport.HTTPTransport
	fetcher   proxy.CandidateFetcher
	store     store.Store
	metrics   *monitoring.MetricsManager
	stats     *monitoring.StatsServer
}

// NewClient assembles a client from a configuration. The context is
// used for backend connections made during assembly, such as the
// MongoDB store; it does not bound the client's lifetime.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	config.ApplyDefaults(cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs[0])
	}
	utils.SetGlobalLevel(cfg.LogLevel)

	client := &Client{
		config:    cfg,
		transport: transport.NewHTTPTransport(cfg.BuildTransportConfig()),
	}

	if storeConfig, ok := cfg.BuildStoreConfig(); ok {
		st, err := store.New(ctx, storeConfig)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		client.store = st
	}

	if fetcherConfig, ok := cfg.BuildFetcherConfig(); ok {
		var renderer sources.Renderer
		if cfg.Sources.Browser {
			renderer = sources.NewBrowserRenderer(sources.DefaultBrowserConfig())
		}
		client.fetcher = sources.NewFetcher(fetcherConfig, renderer)
		if client.store != nil {
			client.fetcher = sources.NewPersistentFetcher(client.fetcher, client.store)
		}
	} else if client.store != nil {
		// No live sources; bootstrap from whatever the store holds.
		client.fetcher = storeFetcher{client.store}
	}

	rotatorConfig, err := cfg.BuildRotatorConfig()
	if err != nil {
		client.closeBackends()
		return nil, err
	}

	rotator, err := proxy.NewRotator(rotatorConfig, client.transport, client.fetcher)
	if err != nil {
		client.closeBackends()
		return nil, err
	}
	client.rotator = rotator

	for _, entry := range cfg.ProxyEntries() {
		p, perr := proxy.NewProxyFromEntry(entry)
		if perr != nil {
			client.closeBackends()
			return nil, fmt.Errorf("proxy %q: %w", entry.URL, perr)
		}
		if aerr := rotator.AddProxy(p); aerr != nil {
			clientLogger.Warnf("skipping duplicate proxy %q", entry.URL)
		}
	}

	if cfg.Monitoring != nil && cfg.Monitoring.Enabled {
		client.metrics = monitoring.NewMetricsManager()
		rotator.SetMetricsRecorder(client.metrics)
		client.stats = monitoring.NewStatsServer(cfg.Monitoring.Address, rotator, client.metrics)
		go func() {
			if serr := client.stats.Start(); serr != nil {
				clientLogger.Errorf("stats server stopped: %v", serr)
			}
		}()
	}

	return client, nil
}

// NewClientFromFile loads a configuration file and assembles a client.
func NewClientFromFile(ctx context.Context, filename string) (*Client, error) {
	cfg, err := config.LoadFromFile(filename)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, cfg)
}

// storeFetcher serves stored candidates when no live sources are
// configured.
type storeFetcher struct {
	st store.Store
}

func (f storeFetcher) FetchCandidates(ctx context.Context) ([]proxy.ProxyEntry, error) {
	return f.st.Load(ctx)
}

// Get issues a GET through the rotation engine.
func (c *Client) Get(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	return c.rotator.Get(ctx, url, opts)
}

// Post issues a POST through the rotation engine.
func (c *Client) Post(ctx context.Context, url string, opts *RequestOptions) (*Response, error) {
	return c.rotator.Post(ctx, url, opts)
}

// Request issues an arbitrary-method request through the rotation engine.
func (c *Client) Request(ctx context.Context, method, url string, opts *RequestOptions) (*Response, error) {
	return c.rotator.Request(ctx, method, url, opts)
}

// RequestAsync issues a request on a background goroutine and delivers
// the result on the returned channel.
func (c *Client) RequestAsync(ctx context.Context, method, url string, opts *RequestOptions) <-chan AsyncResult {
	return c.rotator.RequestAsync(ctx, method, url, opts)
}

// AddProxy adds one proxy to the pool by URL.
func (c *Client) AddProxy(rawURL string) (string, error) {
	p, err := c.rotator.AddProxyURL(rawURL)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// RemoveProxy removes a proxy by id. It reports whether one was removed.
func (c *Client) RemoveProxy(id string) bool {
	return c.rotator.RemoveProxy(id)
}

// Refresh fetches the configured sources and merges the candidates
// into the pool. Proxies already present keep their counters.
func (c *Client) Refresh(ctx context.Context) (int, error) {
	if c.fetcher == nil {
		return 0, fmt.Errorf("no sources or store configured")
	}

	entries, err := c.fetcher.FetchCandidates(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, entry := range entries {
		if c.rotator.ContainsURL(entry.URL) {
			continue
		}
		p, perr := proxy.NewProxyFromEntry(entry)
		if perr != nil {
			clientLogger.Warnf("skipping candidate %q: %v", entry.URL, perr)
			continue
		}
		if aerr := c.rotator.AddProxy(p); aerr != nil {
			continue
		}
		added++
	}
	return added, nil
}

// HealthCheck probes every pooled proxy by issuing a request through
// it. An empty checkURL or zero timeout uses the engine defaults.
func (c *Client) HealthCheck(ctx context.Context, checkURL string, timeout time.Duration) []proxy.HealthCheckResult {
	return c.rotator.HealthCheck(ctx, checkURL, timeout)
}

// Rotator exposes the underlying engine for advanced use.
func (c *Client) Rotator() *proxy.Rotator {
	return c.rotator
}

// PoolStats returns an aggregate snapshot of the pool.
func (c *Client) PoolStats() PoolStats {
	return c.rotator.GetPoolStats()
}

// Proxies returns a per-proxy snapshot of the pool.
func (c *Client) Proxies() []ProxyStat {
	return c.rotator.Proxies()
}

// CircuitStates returns every breaker's state keyed by proxy id.
func (c *Client) CircuitStates() map[string]string {
	return c.rotator.GetCircuitBreakerStates()
}

// Close shuts down the stats server, the store connection, and any
// idle transport connections.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.stats != nil {
		if err := c.stats.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.closeBackends(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.transport.CloseIdleConnections()
	return firstErr
}

func (c *Client) closeBackends() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
