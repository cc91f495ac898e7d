// internal/export/csv.go
package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter renders the per-proxy rows of a report as CSV with a
// header row. The pool aggregate is carried by the JSON and Excel
// writers; CSV keeps one flat table so it loads cleanly elsewhere.
type CSVWriter struct{}

// Write encodes the report's proxy rows onto w.
func (cw *CSVWriter) Write(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(proxyHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, stat := range report.Proxies {
		row := proxyRow(stat)
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = fmt.Sprintf("%v", value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing row for %s: %w", stat.URL, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
