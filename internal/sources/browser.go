// internal/sources/browser.go - headless browser rendering for JS-built listings
package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/valpere/ProxyRotexter/internal/utils"
)

var browserLogger = utils.NewComponentLogger("browser")

// BrowserConfig tunes the headless browser renderer.
type BrowserConfig struct {
	Headless      bool          `yaml:"headless" json:"headless"`
	DisableImages bool          `yaml:"disable_images" json:"disable_images"`
	UserAgent     string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	WaitDelay     time.Duration `yaml:"wait_delay,omitempty" json:"wait_delay,omitempty"`
}

/// DefaultBrowserConfig returns the renderer defaults: headless, no
// images, a short settle delay for client side table builds.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:      true,
		DisableImages: true,
		WaitDelay:     2 * time.Second,
	}
}

// BrowserRenderer renders pages with a shared Chrome allocator and one
// browser context per Render call.
type BrowserRenderer struct {
	config   BrowserConfig
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewBrowserRenderer starts the Chrome allocator.
func NewBrowserRenderer(config BrowserConfig) *BrowserRenderer {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &BrowserRenderer{
		config:   config,
		allocCtx: allocCtx,
		cancel:   cancel,
	}
}

// Render navigates to url and returns the fully rendered document.
func (r *BrowserRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(r.allocCtx)
	defer cancelBrowser()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		browserCtx, cancelDeadline = context.WithDeadline(browserCtx, deadline)
		defer cancelDeadline()
	}

	tasks := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	}
	if r.config.WaitDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(r.config.WaitDelay))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	start := time.Now()
	if err := chromedp.Run(browserCtx, tasks...); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}
	browserLogger.Debugf("rendered %s in %v (%d bytes)", url, time.Since(start), len(html))

	return []byte(html), nil
}

// Close shuts the Chrome allocator down.
func (r *BrowserRenderer) Close() {
	r.cancel()
}
