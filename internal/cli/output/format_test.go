package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "json", input: "json", want: FormatJSON},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yaml", input: "yaml", want: FormatYAML},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  table  ", want: FormatTable},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "table", FormatTable.String())
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "yaml", FormatYAML.String())
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, true)

	assert.Equal(t, FormatTable, printer.Format())
	assert.True(t, printer.ColorEnabled())

	printer.Println("deleted 3 versions")
	assert.Contains(t, buf.String(), "deleted 3 versions")
}

func TestPrinterSuccess(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	printer.Success("deleted 3 versions")
	assert.Equal(t, "✓ deleted 3 versions\n", buf.String())
}

func TestPrinterSuccessColor(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, true)

	printer.Success("logged in")
	assert.Contains(t, buf.String(), "\033[32m✓\033[0m logged in")
}

func TestPrinterError(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	printer.Error("1 of 3 deletions failed")
	assert.Equal(t, "✗ 1 of 3 deletions failed\n", buf.String())
}

func TestPrinterWarning(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	printer.Warning("2 dangling references")
	assert.Equal(t, "! 2 dangling references\n", buf.String())
}

func TestDefaultPrinter(t *testing.T) {
	printer := DefaultPrinter()
	assert.NotNil(t, printer)
	assert.Equal(t, FormatTable, printer.Format())
	assert.True(t, printer.ColorEnabled())
}

func TestPrinterPrint(t *testing.T) {
	result := struct {
		Package string `json:"package" yaml:"package"`
		Deleted int    `json:"deleted" yaml:"deleted"`
	}{Package: "acme/app", Deleted: 3}

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewPrinter(&buf, FormatJSON, false).Print(&result)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"package": "acme/app"`)
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewPrinter(&buf, FormatYAML, false).Print(&result)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "deleted: 3")
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		// The struct does not implement TableRenderer.
		var buf bytes.Buffer
		err := NewPrinter(&buf, FormatTable, false).Print(&result)
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"deleted": 3`)
	})
}
