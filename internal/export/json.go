// internal/export/json.go
package export

import (
	"encoding/json"
	"io"
)

// JSONWriter renders a report as a single JSON document.
type JSONWriter struct {
	Pretty bool
}

// Write encodes the report onto w.
func (jw *JSONWriter) Write(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	if jw.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(report)
}
