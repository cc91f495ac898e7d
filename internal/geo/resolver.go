// internal/geo/resolver.go - country and region canonicalization
package geo

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// Resolver canonicalizes country input into ISO 3166-1 alpha-2 codes
// and maps countries to continental regions. All lookups are local; no
// geolocation service is consulted. Safe for concurrent use.
type Resolver struct {
	once    sync.Once
	byName  map[string]string
}

// NewResolver creates a resolver. The English country-name table is
// built lazily on the first name lookup.
func NewResolver() *Resolver {
	return &Resolver{}
}

// CanonicalCountry maps "de", "DEU", or "Germany" to "DE". An input it
// cannot resolve is an error.
func (r *Resolver) CanonicalCountry(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("country is empty")
	}

	// ISO alpha-2 and alpha-3 codes parse directly.
	if len(trimmed) == 2 || len(trimmed) == 3 {
		if region, err := language.ParseRegion(trimmed); err == nil && region.IsCountry() {
			return region.String(), nil
		}
	}

	r.once.Do(r.buildNameTable)
	if code, ok := r.byName[strings.ToLower(trimmed)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("unknown country %q", input)
}

// RegionOf returns the continental region code for an ISO country code:
// EU, NA, SA, AS, AF, or OC. Unknown countries map to the empty string.
func (r *Resolver) RegionOf(countryCode string) string {
	return countryRegions[strings.ToUpper(strings.TrimSpace(countryCode))]
}

// Enrich canonicalizes the country code of each entry and fills in a
// missing region from the country. Entries whose country cannot be
// resolved keep their original values.
func (r *Resolver) Enrich(entries []proxy.ProxyEntry) []proxy.ProxyEntry {
	out := make([]proxy.ProxyEntry, len(entries))
	for i, entry := range entries {
		if entry.CountryCode != "" {
			if code, err := r.CanonicalCountry(entry.CountryCode); err == nil {
				entry.CountryCode = code
			}
		}
		if entry.Region == "" && entry.CountryCode != "" {
			entry.Region = r.RegionOf(entry.CountryCode)
		}
		out[i] = entry
	}
	return out
}

// buildNameTable walks every two-letter region and records its English
// display name, so "Germany" resolves without an external dataset.
func (r *Resolver) buildNameTable() {
	namer := display.English.Regions()
	table := make(map[string]string, 256)

	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			code := string([]rune{a, b})
			region, err := language.ParseRegion(code)
			if err != nil || !region.IsCountry() {
				continue
			}
			name := namer.Name(region)
			if name == "" || name == code {
				continue
			}
			table[strings.ToLower(name)] = region.String()
		}
	}
	r.byName = table
}
