// internal/export/report.go - pool snapshot reporting
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valpere/ProxyRotexter/internal/proxy"
)

// Report is a point-in-time snapshot of the rotation engine: the pool
// aggregate, one row per proxy, and the circuit breaker states.
type Report struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Stats       proxy.PoolStats   `json:"stats"`
	Proxies     []proxy.ProxyStat `json:"proxies"`
	Circuits    map[string]string `json:"circuits,omitempty"`
}

// NewReport snapshots a rotator.
func NewReport(r *proxy.Rotator) *Report {
	return &Report{
		GeneratedAt: time.Now().UTC(),
		Stats:       r.GetPoolStats(),
		Proxies:     r.Proxies(),
		Circuits:    r.GetCircuitBreakerStates(),
	}
}

// Writer renders a report to an output stream.
type Writer interface {
	Write(w io.Writer, report *Report) error
}

// WriterForPath picks a writer by file extension: .json, .csv, or
// .xlsx. The Excel writer ignores the stream and writes the file
// itself, so it is returned by WriteFile instead.
func WriterForPath(path string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return &JSONWriter{Pretty: true}, nil
	case ".csv":
		return &CSVWriter{}, nil
	default:
		return nil, fmt.Errorf("no report writer for %q", path)
	}
}

// WriteFile renders a report to path, picking the format from the
// extension: .json, .csv, or .xlsx.
func WriteFile(path string, report *Report) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteExcelFile(path, report)
	}

	writer, err := WriterForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	return writer.Write(f, report)
}

// proxyHeader is the column layout shared by the CSV and Excel writers.
var proxyHeader = []string{
	"url", "health", "country", "region", "source", "cost_per_request",
	"total_requests", "total_successes", "total_failures",
	"consecutive_failures", "requests_active", "avg_response_time_ms",
}

func proxyRow(stat proxy.ProxyStat) []interface{} {
	return []interface{}{
		stat.URL,
		string(stat.Health),
		stat.CountryCode,
		stat.Region,
		string(stat.Source),
		stat.CostPerRequest,
		stat.TotalRequests,
		stat.TotalSuccesses,
		stat.TotalFailures,
		stat.ConsecutiveFailures,
		stat.RequestsActive,
		stat.AvgResponseTimeMs,
	}
}
