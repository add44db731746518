// Package output renders command results as tables for humans and JSON or
// YAML for scripts, with glyph-prefixed status lines honoring --no-color.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Format selects how a command renders its result.
type Format string

const (
	// FormatTable renders an aligned text table.
	FormatTable Format = "table"
	// FormatJSON renders indented JSON.
	FormatJSON Format = "json"
	// FormatYAML renders YAML.
	FormatYAML Format = "yaml"
)

// ParseFormat parses the --output flag value. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// ANSI codes for the status glyphs.
const (
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// Printer writes formatted results and status lines to one writer.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer for the given format. color enables ANSI
// coloring of status glyphs.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{
		out:    out,
		format: format,
		color:  color,
	}
}

// DefaultPrinter creates a Printer that writes to stdout with table format.
func DefaultPrinter() *Printer {
	return NewPrinter(os.Stdout, FormatTable, true)
}

// Format returns the printer's output format.
func (p *Printer) Format() Format {
	return p.format
}

// Writer returns the printer's output writer.
func (p *Printer) Writer() io.Writer {
	return p.out
}

// ColorEnabled returns whether color output is enabled.
func (p *Printer) ColorEnabled() bool {
	return p.color
}

// Print renders data in the configured format. Table format needs data to
// implement TableRenderer; anything else falls back to JSON so a result is
// never silently dropped.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	case FormatTable:
		if renderer, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, renderer)
		}
		return PrintJSON(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

// Println prints a message followed by a newline.
func (p *Printer) Println(args ...any) {
	_, _ = fmt.Fprintln(p.out, args...)
}

// Printf prints a formatted message.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// status prints one glyph-prefixed line, coloring the glyph when enabled.
func (p *Printer) status(color, glyph, msg string) {
	if p.color {
		glyph = color + glyph + colorReset
	}
	_, _ = fmt.Fprintf(p.out, "%s %s\n", glyph, msg)
}

// Success prints a success message with a ✓ glyph.
func (p *Printer) Success(msg string) {
	p.status(colorGreen, "✓", msg)
}

// Error prints an error message with a ✗ glyph.
func (p *Printer) Error(msg string) {
	p.status(colorRed, "✗", msg)
}

// Warning prints a warning message with a ! glyph.
func (p *Printer) Warning(msg string) {
	p.status(colorYellow, "!", msg)
}
