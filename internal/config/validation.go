// internal/config/validation.go
package config

import (
	"fmt"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// ValidationError locates one problem in a configuration document.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
}

var validStrategies = map[string]bool{
	"round_robin":       true,
	"random":            true,
	"least_used":        true,
	"weighted":          true,
	"performance_based": true,
	"session":           true,
	"geo_targeted":      true,
	"cost_aware":        true,
}

var validBackoffs = map[string]bool{
	"exponential": true,
	"linear":      true,
	"fixed":       true,
}

var validFormats = map[string]bool{
	"plain": true,
	"json":  true,
	"csv":   true,
	"html":  true,
}

var validBackends = map[string]bool{
	"memory":   true,
	"file":     true,
	"sqlite":   true,
	"postgres": true,
	"mysql":    true,
	"mongodb":  true,
}

// Validate checks the whole document and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if !validStrategies[c.Rotator.Strategy] {
		errs = append(errs, ValidationError{
			Path:    "rotator.strategy",
			Message: fmt.Sprintf("unknown strategy %q", c.Rotator.Strategy),
		})
	}
	if !validBackoffs[c.Rotator.RetryPolicy.BackoffStrategy] {
		errs = append(errs, ValidationError{
			Path:    "rotator.retry_policy.backoff_strategy",
			Message: fmt.Sprintf("unknown backoff strategy %q", c.Rotator.RetryPolicy.BackoffStrategy),
		})
	}
	if c.Rotator.RetryPolicy.MaxBackoffDelay < c.Rotator.RetryPolicy.BaseDelay {
		errs = append(errs, ValidationError{
			Path:    "rotator.retry_policy.max_backoff_delay",
			Message: "must be at least base_delay",
		})
	}
	for _, code := range c.Rotator.RetryPolicy.RetryableStatusCodes {
		if code < 400 || code > 599 {
			errs = append(errs, ValidationError{
				Path:    "rotator.retry_policy.retryable_status_codes",
				Message: fmt.Sprintf("%d is not an HTTP error status", code),
			})
		}
	}
	if secondary := c.Rotator.StrategyOptions.GeoSecondaryStrategy; secondary != "" {
		if !validStrategies[secondary] || secondary == "session" || secondary == "geo_targeted" || secondary == "cost_aware" {
			errs = append(errs, ValidationError{
				Path:    "rotator.strategy_options.geo_secondary_strategy",
				Message: fmt.Sprintf("%q cannot serve as a secondary strategy", secondary),
			})
		}
	}
	if alpha := c.Rotator.StrategyOptions.EMAAlpha; alpha < 0 || alpha > 1 {
		errs = append(errs, ValidationError{
			Path:    "rotator.strategy_options.ema_alpha",
			Message: "must be between 0 and 1",
		})
	}

	if err := c.Transport.TLS.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Path:    "transport.tls",
			Message: err.Error(),
		})
	}

	for i, entry := range c.Proxies {
		if _, err := proxy.NormalizeProxyURL(entry.URL); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("proxies[%d].url", i),
				Message: err.Error(),
			})
		}
	}

	if c.Sources != nil {
		if len(c.Sources.Sources) == 0 {
			errs = append(errs, ValidationError{
				Path:    "sources.sources",
				Message: "at least one source is required when the sources section is present",
			})
		}
		for i, source := range c.Sources.Sources {
			if source.URL == "" {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("sources.sources[%d].url", i),
					Message: "url is required",
				})
			}
			if source.Format != "" && !validFormats[source.Format] {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("sources.sources[%d].format", i),
					Message: fmt.Sprintf("unknown format %q", source.Format),
				})
			}
			if source.RenderJS && !c.Sources.Browser {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("sources.sources[%d].render_js", i),
					Message: "render_js requires sources.browser to be enabled",
				})
			}
		}
	}

	if c.Store != nil && c.Store.Backend != "" && !validBackends[c.Store.Backend] {
		errs = append(errs, ValidationError{
			Path:    "store.backend",
			Message: fmt.Sprintf("unknown backend %q", c.Store.Backend),
		})
	}

	return errs
}
