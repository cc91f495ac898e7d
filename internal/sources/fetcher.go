// internal/sources/fetcher.go - concurrent proxy list fetching
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/valpere/ProxyRotexter/internal/geo"
	"github.com/valpere/ProxyRotexter/internal/proxy"
	"github.com/valpere/ProxyRotexter/internal/utils"
)

var fetcherLogger = utils.NewComponentLogger("sources")

// Renderer fetches a page through a headless browser, for listings
// assembled client side.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// FetcherConfig tunes the source fetcher.
type FetcherConfig struct {
	Sources []SourceConfig `yaml:"sources" json:"sources"`
	// SampleSize caps how many deduplicated candidates are returned.
	// Zero means no cap.
	SampleSize int `yaml:"sample_size,omitempty" json:"sample_size,omitempty"`
	// MaxConcurrent bounds how many sources are fetched at once.
	MaxConcurrent int `yaml:"max_concurrent,omitempty" json:"max_concurrent,omitempty"`
	// Timeout is the per-source default when a source sets none.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// RateLimit throttles source fetches per second. Zero disables it.
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// Fetcher downloads and parses the configured proxy lists. It is the
// rotator's bootstrap collaborator: FetchCandidates runs every source
// through a bounded worker pool, dedupes the results by endpoint, and
// enriches geographic tags.
type Fetcher struct {
	config   FetcherConfig
	client   *http.Client
	limiter  *rate.Limiter
	renderer Renderer
	resolver *geo.Resolver
}

// NewFetcher creates a fetcher with defaults filled in. The renderer
// may be nil; sources marked render_js then fail individually.
func NewFetcher(config FetcherConfig, renderer Renderer) *Fetcher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Fetcher{
		config:   config,
		client:   &http.Client{},
		limiter:  limiter,
		renderer: renderer,
		resolver: geo.NewResolver(),
	}
}

// FetchCandidates fetches all sources concurrently and returns the
// deduplicated candidates, capped at the configured sample size. It
// fails only when every source fails; partial results are returned.
func (f *Fetcher) FetchCandidates(ctx context.Context) ([]proxy.ProxyEntry, error) {
	if len(f.config.Sources) == 0 {
		return nil, fmt.Errorf("no proxy sources configured")
	}

	var (
		mu      sync.Mutex
		entries []proxy.ProxyEntry
		errs    []error
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, f.config.MaxConcurrent)

	for _, source := range f.config.Sources {
		wg.Add(1)
		go func(source SourceConfig) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			got, err := f.fetchSource(ctx, source)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fetcherLogger.Warnf("source %s failed: %v", source.Name, err)
				errs = append(errs, fmt.Errorf("%s: %w", source.Name, err))
				return
			}
			fetcherLogger.Infof("source %s yielded %d candidates", source.Name, len(got))
			entries = append(entries, got...)
		}(source)
	}
	wg.Wait()

	if len(entries) == 0 {
		if len(errs) > 0 {
			return nil, fmt.Errorf("all %d sources failed, first error: %w", len(errs), errs[0])
		}
		return nil, fmt.Errorf("sources returned no proxies")
	}

	deduped := dedupeEntries(entries)
	deduped = f.resolver.Enrich(deduped)
	if f.config.SampleSize > 0 && len(deduped) > f.config.SampleSize {
		deduped = deduped[:f.config.SampleSize]
	}
	return deduped, nil
}

// fetchSource downloads one source and parses its payload. A 429 with a
// Retry-After of up to 30 seconds is honored once.
func (f *Fetcher) fetchSource(ctx context.Context, source SourceConfig) ([]proxy.ProxyEntry, error) {
	timeout := source.Timeout
	if timeout <= 0 {
		timeout = f.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	payload, err := f.download(ctx, source)
	if err != nil {
		return nil, err
	}
	return Parse(source, payload)
}

func (f *Fetcher) download(ctx context.Context, source SourceConfig) ([]byte, error) {
	if source.RenderJS {
		if f.renderer == nil {
			return nil, fmt.Errorf("source needs JS rendering but no renderer is configured")
		}
		return f.renderer.Render(ctx, source.URL)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait > 0 && wait <= 30*time.Second {
				fetcherLogger.Debugf("source %s rate limited, retrying after %v", source.Name, wait)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
			return nil, fmt.Errorf("rate limited (429)")
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxBodySize))
		resp.Body.Close()
		return data, err
	}
}

const defaultMaxBodySize = 10 << 20

func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return time.Until(at)
	}
	return 0
}

// dedupeEntries keeps the first entry per normalized endpoint.
func dedupeEntries(entries []proxy.ProxyEntry) []proxy.ProxyEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]proxy.ProxyEntry, 0, len(entries))
	for _, entry := range entries {
		u, err := proxy.NormalizeProxyURL(entry.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[u.Host]; dup {
			continue
		}
		seen[u.Host] = struct{}{}
		out = append(out, entry)
	}
	return out
}
