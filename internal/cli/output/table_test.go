package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	table := NewTableData("Group", "Tags", "Versions")

	assert.Equal(t, []string{"Group", "Tags", "Versions"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("v1", "v1, latest", "3")
	table.AddRow("Unknown", "", "1")

	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"v1", "v1, latest", "3"}, rows[0])
	assert.Equal(t, []string{"Unknown", "", "1"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("Tag", "Digest")
	table.AddRow("v1", "sha256:59e7")
	table.AddRow("latest", "sha256:59e7")

	var buf bytes.Buffer
	err := PrintTable(&buf, table)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "TAG")
	assert.Contains(t, output, "DIGEST")
	assert.Contains(t, output, "v1")
	assert.Contains(t, output, "latest")
	assert.Contains(t, output, "sha256:59e7")
}

func TestSimpleTable(t *testing.T) {
	pairs := [][2]string{
		{"Versions", "5"},
		{"Orphans", "1"},
	}

	var buf bytes.Buffer
	err := SimpleTable(&buf, pairs)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Versions")
	assert.Contains(t, output, "5")
	assert.Contains(t, output, "Orphans")
	assert.Contains(t, output, "1")
}
