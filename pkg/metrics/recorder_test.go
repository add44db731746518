package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/regsweep/pkg/reconcile"
)

// The engine and planner count through this interface.
var _ reconcile.Metrics = (*Recorder)(nil)

func TestRecorderWritesTextfile(t *testing.T) {
	rec := NewRecorder("pdcastro/oh_so_smart")

	rec.VersionScanned()
	rec.VersionScanned()
	rec.VersionScanned()
	rec.IndexFetch("ok")
	rec.IndexFetch("error")
	rec.Deletion("ok")
	rec.RecordReport(2, 1, 0)
	rec.FinishRun(true)

	path := filepath.Join(t.TempDir(), "regsweep.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `regsweep_versions_scanned_total{package="pdcastro/oh_so_smart"} 3`)
	assert.Contains(t, out, `regsweep_index_fetches_total{outcome="ok",package="pdcastro/oh_so_smart"} 1`)
	assert.Contains(t, out, `regsweep_index_fetches_total{outcome="error",package="pdcastro/oh_so_smart"} 1`)
	assert.Contains(t, out, `regsweep_deletions_total{outcome="ok",package="pdcastro/oh_so_smart"} 1`)
	assert.Contains(t, out, `regsweep_orphans{package="pdcastro/oh_so_smart"} 2`)
	assert.Contains(t, out, `regsweep_dangling_references{package="pdcastro/oh_so_smart"} 1`)
	assert.Contains(t, out, `regsweep_run_success{package="pdcastro/oh_so_smart"} 1`)
	assert.Contains(t, out, "regsweep_run_duration_seconds")
}

func TestRecorderFailedRun(t *testing.T) {
	rec := NewRecorder("pdcastro/oh_so_smart")
	rec.FinishRun(false)

	path := filepath.Join(t.TempDir(), "regsweep.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `regsweep_run_success{package="pdcastro/oh_so_smart"} 0`)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var rec *Recorder

	rec.VersionScanned()
	rec.IndexFetch("ok")
	rec.Deletion("error")
	rec.RecordReport(1, 2, 3)
	rec.FinishRun(true)

	assert.NoError(t, rec.WriteTextfile(filepath.Join(t.TempDir(), "never-written.prom")))
}

func TestWriteTextfileLeavesNoTempFiles(t *testing.T) {
	rec := NewRecorder("pdcastro/oh_so_smart")
	rec.VersionScanned()

	dir := t.TempDir()
	path := filepath.Join(dir, "regsweep.prom")
	require.NoError(t, rec.WriteTextfile(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "regsweep.prom", entries[0].Name())
}

func TestWriteTextfileOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regsweep.prom")

	rec := NewRecorder("pdcastro/oh_so_smart")
	rec.VersionScanned()
	require.NoError(t, rec.WriteTextfile(path))

	rec2 := NewRecorder("pdcastro/oh_so_smart")
	rec2.VersionScanned()
	rec2.VersionScanned()
	require.NoError(t, rec2.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `regsweep_versions_scanned_total{package="pdcastro/oh_so_smart"} 2`)
}
