// internal/sources/parser.go - proxy list payload parsing
package sources

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// Parse decodes a fetched payload into proxy entries according to the
// source's format. Unparseable individual records are skipped; a payload
// that yields nothing at all is an error.
func Parse(source SourceConfig, payload []byte) ([]proxy.ProxyEntry, error) {
	var (
		entries []proxy.ProxyEntry
		err     error
	)

	switch source.Format {
	case FormatPlain, "":
		entries = parsePlain(source, payload)
	case FormatJSON:
		entries, err = parseJSON(source, payload)
	case FormatCSV:
		entries, err = parseCSV(source, payload)
	case FormatHTML:
		entries, err = parseHTML(source, payload)
	default:
		return nil, fmt.Errorf("source %s: unknown format %q", source.Name, source.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("source %s: no proxies in payload", source.Name)
	}
	return entries, nil
}

// parsePlain reads one host:port per line. Blank lines and # comments
// are skipped.
func parsePlain(source SourceConfig, payload []byte) []proxy.ProxyEntry {
	var entries []proxy.ProxyEntry
	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if entry, ok := entryFromHostPort(source, line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// jsonProxyRecord accepts the key aliases the public lists use.
type jsonProxyRecord struct {
	Host    string          `json:"host"`
	IP      string          `json:"ip"`
	Port    json.RawMessage `json:"port"`
	Scheme  string          `json:"scheme"`
	Proto   string          `json:"protocol"`
	Country string          `json:"country"`
	Cost    float64         `json:"cost_per_request"`
}

func parseJSON(source SourceConfig, payload []byte) ([]proxy.ProxyEntry, error) {
	var records []jsonProxyRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		// Some lists wrap the array in a data field.
		var wrapper struct {
			Data []jsonProxyRecord `json:"data"`
		}
		if werr := json.Unmarshal(payload, &wrapper); werr != nil || len(wrapper.Data) == 0 {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
		records = wrapper.Data
	}

	var entries []proxy.ProxyEntry
	for _, rec := range records {
		host := rec.Host
		if host == "" {
			host = rec.IP
		}
		port := strings.Trim(string(rec.Port), `"`)
		if host == "" || port == "" {
			continue
		}

		scheme := rec.Scheme
		if scheme == "" {
			scheme = rec.Proto
		}
		entry, ok := entryFromHostPort(source, net.JoinHostPort(host, port))
		if !ok {
			continue
		}
		if scheme != "" {
			entry.URL = strings.ToLower(scheme) + "://" + net.JoinHostPort(host, port)
		}
		if rec.Country != "" {
			entry.CountryCode = strings.ToUpper(rec.Country)
		}
		entry.CostPerRequest = rec.Cost
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseCSV(source SourceConfig, payload []byte) ([]proxy.ProxyEntry, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decoding CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	// Header-mapped columns; host/ip, port, country, and scheme are
	// recognized by name.
	cols := make(map[string]int)
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	hostCol, ok := cols["host"]
	if !ok {
		hostCol, ok = cols["ip"]
	}
	portCol, portOK := cols["port"]
	if !ok || !portOK {
		return nil, fmt.Errorf("CSV header lacks host/ip and port columns")
	}

	var entries []proxy.ProxyEntry
	for _, row := range records[1:] {
		if hostCol >= len(row) || portCol >= len(row) {
			continue
		}
		entry, ok := entryFromHostPort(source, net.JoinHostPort(row[hostCol], row[portCol]))
		if !ok {
			continue
		}
		if i, exists := cols["scheme"]; exists && i < len(row) && row[i] != "" {
			entry.URL = strings.ToLower(row[i]) + "://" + net.JoinHostPort(row[hostCol], row[portCol])
		}
		if i, exists := cols["country"]; exists && i < len(row) && row[i] != "" {
			entry.CountryCode = strings.ToUpper(strings.TrimSpace(row[i]))
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// parseHTML extracts host:port pairs from table rows. The first two
// cells of each selected row are taken as host and port; rows whose
// cells do not form a valid endpoint are skipped.
func parseHTML(source SourceConfig, payload []byte) ([]proxy.ProxyEntry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	selector := source.RowSelector
	if selector == "" {
		selector = "table tbody tr"
	}

	var entries []proxy.ProxyEntry
	doc.Find(selector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		host := strings.TrimSpace(cells.Eq(0).Text())
		port := strings.TrimSpace(cells.Eq(1).Text())
		if host == "" || port == "" {
			return
		}
		if entry, ok := entryFromHostPort(source, net.JoinHostPort(host, port)); ok {
			entries = append(entries, entry)
		}
	})
	return entries, nil
}

// entryFromHostPort builds an entry from a host:port token, applying the
// source's default scheme and country tag. Tokens that already carry a
// scheme are kept as-is.
func entryFromHostPort(source SourceConfig, token string) (proxy.ProxyEntry, bool) {
	token = strings.TrimSpace(token)

	raw := token
	if !strings.Contains(token, "://") {
		host, port, err := net.SplitHostPort(token)
		if err != nil || host == "" || port == "" {
			return proxy.ProxyEntry{}, false
		}
		scheme := source.Scheme
		if scheme == "" {
			scheme = "http"
		}
		raw = scheme + "://" + net.JoinHostPort(host, port)
	}

	if _, err := proxy.NormalizeProxyURL(raw); err != nil {
		return proxy.ProxyEntry{}, false
	}

	return proxy.ProxyEntry{
		URL:         raw,
		CountryCode: strings.ToUpper(strings.TrimSpace(source.Country)),
		Source:      string(proxy.SourceFetched),
	}, true
}
