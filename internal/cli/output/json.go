package output

import (
	"encoding/json"
	"io"
)

// PrintJSON writes data as two-space indented JSON. HTML escaping is off so
// URLs inside API payloads print verbatim.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// PrintJSONCompact writes data as single-line JSON for log-style consumers.
func PrintJSONCompact(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}
