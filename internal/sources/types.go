// internal/sources/types.go
package sources

import "time"

// SourceFormat identifies how a proxy list is encoded.
type SourceFormat string

const (
	FormatPlain SourceFormat = "plain"
	FormatJSON  SourceFormat = "json"
	FormatCSV   SourceFormat = "csv"
	FormatHTML  SourceFormat = "html"
)

// SourceConfig describes one remote proxy list.
type SourceConfig struct {
	Name   string       `yaml:"name" json:"name"`
	URL    string       `yaml:"url" json:"url"`
	Format SourceFormat `yaml:"format" json:"format"`
	// Timeout bounds the fetch of this source. Zero means the fetcher
	// default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	// Scheme is applied to entries that carry no scheme of their own.
	// Defaults to http.
	Scheme string `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	// Country tags every entry from this source when the payload itself
	// carries no country information.
	Country string `yaml:"country,omitempty" json:"country,omitempty"`
	// RowSelector locates proxy rows in HTML sources. Defaults to
	// "table tbody tr".
	RowSelector string `yaml:"row_selector,omitempty" json:"row_selector,omitempty"`
	// RenderJS fetches the page through a headless browser before
	// parsing, for listings assembled client side.
	RenderJS bool `yaml:"render_js,omitempty" json:"render_js,omitempty"`
}
