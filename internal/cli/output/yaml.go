package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// PrintYAML writes data as two-space indented YAML. Close flushes the
// document, so its error is the one that matters on the happy path.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}
