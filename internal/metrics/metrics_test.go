package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersMetrics(t *testing.T) {
	m := New()
	m.RecordRemoved(MethodTrash, 10)
	m.RecordError("access_denied")
	m.RecordScan("caches", 100)
	m.ObserveScanDuration(time.Second)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	expected := map[string]bool{
		"reclaim_clean_items_removed_total":   false,
		"reclaim_clean_bytes_removed_total":   false,
		"reclaim_clean_errors_total":          false,
		"reclaim_clean_skipped_running_total": false,
		"reclaim_scan_reclaimable_bytes":      false,
		"reclaim_scan_duration_seconds":       false,
	}
	for _, family := range families {
		if _, ok := expected[family.GetName()]; ok {
			expected[family.GetName()] = true
		}
	}
	for name, found := range expected {
		assert.True(t, found, "expected metric %s to be registered", name)
	}
}

func TestRecordRemoved(t *testing.T) {
	m := New()
	m.RecordRemoved(MethodTrash, 100)
	m.RecordRemoved(MethodTrash, 50)
	m.RecordRemoved(MethodAdmin, 0)

	assert.Equal(t, 2.0, promtest.ToFloat64(m.ItemsRemoved.WithLabelValues(MethodTrash)))
	assert.Equal(t, 150.0, promtest.ToFloat64(m.BytesRemoved.WithLabelValues(MethodTrash)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ItemsRemoved.WithLabelValues(MethodAdmin)))
}

func TestRecordErrorsAndSkips(t *testing.T) {
	m := New()
	m.RecordError("protected_path")
	m.RecordError("protected_path")
	m.RecordSkippedRunning()

	assert.Equal(t, 2.0, promtest.ToFloat64(m.Errors.WithLabelValues("protected_path")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.SkippedRunning))
}

func TestRecordScanOverwrites(t *testing.T) {
	m := New()
	m.RecordScan("caches", 100)
	m.RecordScan("caches", 40)
	assert.Equal(t, 40.0, promtest.ToFloat64(m.ScanBytes.WithLabelValues("caches")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRemoved(MethodTrash, 1)
		m.RecordError("x")
		m.RecordSkippedRunning()
		m.RecordScan("c", 1)
		m.ObserveScanDuration(time.Second)
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordRemoved(MethodDryRun, 4096)

	path := filepath.Join(t.TempDir(), "textfile", "reclaim.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `reclaim_clean_bytes_removed_total{method="dry_run"} 4096`), text)
}
