// internal/config/types.go - configuration document structure
package config

import (
	"github.com/valpere/ProxyRotexter/internal/transport"
	"github.com/valpere/ProxyRotexter/pkg/types"
)

// Config is the top-level configuration document.
type Config struct {
	// Name identifies this rotator configuration
	Name string `yaml:"name" json:"name"`

	// LogLevel sets the global log level: debug, info, warn, error
	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`

	// Rotator configures strategy, retries, and circuit breaking
	Rotator RotatorConfig `yaml:"rotator" json:"rotator"`

	// Transport configures the HTTP transport used for every attempt
	Transport TransportConfig `yaml:"transport,omitempty" json:"transport,omitempty"`

	// Proxies is the static proxy list loaded at startup
	Proxies []ProxyConfig `yaml:"proxies,omitempty" json:"proxies,omitempty"`

	// Sources configures remote proxy lists for bootstrap and fetch
	Sources *SourcesConfig `yaml:"sources,omitempty" json:"sources,omitempty"`

	// Store configures persistent candidate storage
	Store *StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Monitoring configures the stats and metrics HTTP server
	Monitoring *MonitoringConfig `yaml:"monitoring,omitempty" json:"monitoring,omitempty"`
}

// RotatorConfig configures the selection and resilience engine.
type RotatorConfig struct {
	// Strategy is one of: round_robin, random, least_used, weighted,
	// performance_based, session, geo_targeted, cost_aware
	Strategy string `yaml:"strategy" json:"strategy"`

	// RequestTimeout bounds each attempt unless the caller overrides it
	RequestTimeout types.Duration `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`

	// RetryPolicy shapes the attempt loop
	RetryPolicy RetryPolicyConfig `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`

	// CircuitBreaker holds the per-proxy breaker thresholds
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker,omitempty" json:"circuit_breaker,omitempty"`

	// StrategyOptions carries the strategy-specific tunables
	StrategyOptions StrategyOptionsConfig `yaml:"strategy_options,omitempty" json:"strategy_options,omitempty"`
}

// RetryPolicyConfig configures retry pacing.
type RetryPolicyConfig struct {
	MaxAttempts     int            `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	BackoffStrategy string         `yaml:"backoff_strategy,omitempty" json:"backoff_strategy,omitempty"`
	BaseDelay       types.Duration `yaml:"base_delay,omitempty" json:"base_delay,omitempty"`
	Multiplier      float64        `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	MaxBackoffDelay types.Duration `yaml:"max_backoff_delay,omitempty" json:"max_backoff_delay,omitempty"`
	// Jitter defaults to on when omitted
	Jitter               *bool `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	RetryableStatusCodes []int `yaml:"retryable_status_codes,omitempty" json:"retryable_status_codes,omitempty"`
}

// CircuitBreakerConfig configures the per-proxy breakers.
type CircuitBreakerConfig struct {
	FailureThreshold int            `yaml:"failure_threshold,omitempty" json:"failure_threshold,omitempty"`
	WindowDuration   types.Duration `yaml:"window_duration,omitempty" json:"window_duration,omitempty"`
	TimeoutDuration  types.Duration `yaml:"timeout_duration,omitempty" json:"timeout_duration,omitempty"`
}

// StrategyOptionsConfig carries strategy-specific tunables.
type StrategyOptionsConfig struct {
	SessionStickiness types.Duration `yaml:"session_stickiness,omitempty" json:"session_stickiness,omitempty"`
	// GeoFallbackEnabled defaults to on when omitted
	GeoFallbackEnabled   *bool   `yaml:"geo_fallback_enabled,omitempty" json:"geo_fallback_enabled,omitempty"`
	GeoSecondaryStrategy string  `yaml:"geo_secondary_strategy,omitempty" json:"geo_secondary_strategy,omitempty"`
	MaxCostPerRequest    float64 `yaml:"max_cost_per_request,omitempty" json:"max_cost_per_request,omitempty"`
	FreeProxyBoost       float64 `yaml:"free_proxy_boost,omitempty" json:"free_proxy_boost,omitempty"`
	EMAAlpha             float64 `yaml:"ema_alpha,omitempty" json:"ema_alpha,omitempty"`
}

// TransportConfig configures the HTTP transport.
type TransportConfig struct {
	Timeout     types.Duration    `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxBodySize int64             `yaml:"max_body_size,omitempty" json:"max_body_size,omitempty"`
	UserAgents  []string          `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	RateLimit   float64           `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	RateBurst   int               `yaml:"rate_burst,omitempty" json:"rate_burst,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// TLS tunes certificate verification for proxied connections.
	TLS *transport.TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// ProxyConfig is one statically configured proxy.
type ProxyConfig struct {
	URL            string  `yaml:"url" json:"url"`
	CountryCode    string  `yaml:"country_code,omitempty" json:"country_code,omitempty"`
	Region         string  `yaml:"region,omitempty" json:"region,omitempty"`
	CostPerRequest float64 `yaml:"cost_per_request,omitempty" json:"cost_per_request,omitempty"`
}

// SourcesConfig configures remote proxy list fetching.
type SourcesConfig struct {
	SampleSize    int            `yaml:"sample_size,omitempty" json:"sample_size,omitempty"`
	MaxConcurrent int            `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
	Timeout       types.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RateLimit     float64        `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	// Browser enables the headless renderer for render_js sources
	Browser bool           `yaml:"browser,omitempty" json:"browser,omitempty"`
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig describes one remote proxy list.
type SourceConfig struct {
	Name        string         `yaml:"name" json:"name"`
	URL         string         `yaml:"url" json:"url"`
	Format      string         `yaml:"format" json:"format"`
	Timeout     types.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Scheme      string         `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Country     string         `yaml:"country,omitempty" json:"country,omitempty"`
	RowSelector string         `yaml:"row_selector,omitempty" json:"row_selector,omitempty"`
	RenderJS    bool           `yaml:"render_js,omitempty" json:"render_js,omitempty"`
}

// StoreConfig configures persistent candidate storage.
type StoreConfig struct {
	Backend    string `yaml:"backend" json:"backend"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN        string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	Table      string `yaml:"table,omitempty" json:"table,omitempty"`
}

// MonitoringConfig configures the stats HTTP server.
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}
