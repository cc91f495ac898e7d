// internal/config/build.go - translation from the document to domain objects
package config

import (
	"fmt"

	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/sources"
	"github.com/valpere/ProxyRotexter/internal/store"
	"github.com/valpere/ProxyRotexter/internal/transport"
)

// BuildRotatorConfig translates the rotator section into the engine's
// configuration, including the retry policy and strategy options.
func (c *Config) BuildRotatorConfig() (proxy.RotatorConfig, error) {
	retry := c.Rotator.RetryPolicy
	jitter := true
	if retry.Jitter != nil {
		jitter = *retry.Jitter
	}

	policy, err := proxy.NewRetryPolicy(
		retry.MaxAttempts,
		proxy.BackoffStrategy(retry.BackoffStrategy),
		retry.BaseDelay.ToDuration(),
		retry.Multiplier,
		retry.MaxBackoffDelay.ToDuration(),
		jitter,
		retry.RetryableStatusCodes,
	)
	if err != nil {
		return proxy.RotatorConfig{}, fmt.Errorf("retry policy: %w", err)
	}

	opts := &proxy.StrategyOptions{
		SessionStickiness: c.Rotator.StrategyOptions.SessionStickiness.ToDuration(),
		MaxCostPerRequest: c.Rotator.StrategyOptions.MaxCostPerRequest,
		FreeProxyBoost:    c.Rotator.StrategyOptions.FreeProxyBoost,
		EMAAlpha:          c.Rotator.StrategyOptions.EMAAlpha,
	}
	if enabled := c.Rotator.StrategyOptions.GeoFallbackEnabled; enabled != nil {
		opts.GeoFallbackDisabled = !*enabled
	}
	if secondary := c.Rotator.StrategyOptions.GeoSecondaryStrategy; secondary != "" {
		opts.GeoSecondaryStrategy = proxy.StrategyType(secondary)
	}

	return proxy.RotatorConfig{
		Strategy:        proxy.StrategyType(c.Rotator.Strategy),
		StrategyOptions: opts,
		RetryPolicy:     policy,
		CircuitBreaker: proxy.CircuitBreakerConfig{
			FailureThreshold: c.Rotator.CircuitBreaker.FailureThreshold,
			WindowDuration:   c.Rotator.CircuitBreaker.WindowDuration.ToDuration(),
			TimeoutDuration:  c.Rotator.CircuitBreaker.TimeoutDuration.ToDuration(),
		},
		RequestTimeout: c.Rotator.RequestTimeout.ToDuration(),
	}, nil
}

// BuildTransportConfig translates the transport section.
func (c *Config) BuildTransportConfig() transport.Config {
	return transport.Config{
		Timeout:        c.Transport.Timeout.ToDuration(),
		MaxBodySize:    c.Transport.MaxBodySize,
		UserAgents:     c.Transport.UserAgents,
		RateLimit:      c.Transport.RateLimit,
		RateBurst:      c.Transport.RateBurst,
		DefaultHeaders: c.Transport.Headers,
		TLS:            c.Transport.TLS,
	}
}

// BuildFetcherConfig translates the sources section. Returns false
// when no sources are configured.
func (c *Config) BuildFetcherConfig() (sources.FetcherConfig, bool) {
	if c.Sources == nil || len(c.Sources.Sources) == 0 {
		return sources.FetcherConfig{}, false
	}

	configs := make([]sources.SourceConfig, 0, len(c.Sources.Sources))
	for _, s := range c.Sources.Sources {
		configs = append(configs, sources.SourceConfig{
			Name:        s.Name,
			URL:         s.URL,
			Format:      sources.SourceFormat(s.Format),
			Timeout:     s.Timeout.ToDuration(),
			Scheme:      s.Scheme,
			Country:     s.Country,
			RowSelector: s.RowSelector,
			RenderJS:    s.RenderJS,
		})
	}

	return sources.FetcherConfig{
		Sources:       configs,
		SampleSize:    c.Sources.SampleSize,
		MaxConcurrent: c.Sources.MaxConcurrent,
		Timeout:       c.Sources.Timeout.ToDuration(),
		RateLimit:     c.Sources.RateLimit,
	}, true
}

// BuildStoreConfig translates the store section. Returns false when no
// store is configured.
func (c *Config) BuildStoreConfig() (store.Config, bool) {
	if c.Store == nil {
		return store.Config{}, false
	}
	return store.Config{
		Backend:    store.BackendType(c.Store.Backend),
		Path:       c.Store.Path,
		DSN:        c.Store.DSN,
		Database:   c.Store.Database,
		Collection: c.Store.Collection,
		Table:      c.Store.Table,
	}, true
}

// ProxyEntries converts the static proxy list.
func (c *Config) ProxyEntries() []proxy.ProxyEntry {
	entries := make([]proxy.ProxyEntry, 0, len(c.Proxies))
	for _, p := range c.Proxies {
		entries = append(entries, proxy.ProxyEntry{
			URL:            p.URL,
			CountryCode:    p.CountryCode,
			Region:         p.Region,
			CostPerRequest: p.CostPerRequest,
			Source:         string(proxy.SourceUser),
		})
	}
	return entries
}
