// Package metrics provides Prometheus metrics for scan and clean runs. The
// tool is short-lived, so metrics are written to a node-exporter textfile
// instead of being served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Method label values for removals
const (
	MethodTrash      = "trash"
	MethodAdmin      = "admin"
	MethodDryRun     = "dry_run"
	MethodEmptyTrash = "empty_trash"
)

// DefaultScanDurationBuckets cover quick cache scans up to full-home walks
var DefaultScanDurationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Metrics holds the counters of one run. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// ItemsRemoved counts removed items by method.
	// Labels: method (trash, admin, dry_run, empty_trash)
	ItemsRemoved *prometheus.CounterVec

	// BytesRemoved counts reclaimed bytes by method.
	BytesRemoved *prometheus.CounterVec

	// Errors counts failed items by reason.
	Errors *prometheus.CounterVec

	// SkippedRunning counts items left alone because their owner was running.
	SkippedRunning prometheus.Counter

	// ScanBytes is the reclaimable size found per category in the last scan.
	ScanBytes *prometheus.GaugeVec

	// ScanDuration tracks how long whole scan sessions take.
	ScanDuration prometheus.Histogram
}

// New creates metrics on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered with reg
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reclaim",
				Subsystem: "clean",
				Name:      "items_removed_total",
				Help:      "Number of items removed, broken down by method.",
			},
			[]string{"method"},
		),
		BytesRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reclaim",
				Subsystem: "clean",
				Name:      "bytes_removed_total",
				Help:      "Bytes reclaimed, broken down by method.",
			},
			[]string{"method"},
		),
		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "reclaim",
				Subsystem: "clean",
				Name:      "errors_total",
				Help:      "Number of items that could not be removed, broken down by reason.",
			},
			[]string{"reason"},
		),
		SkippedRunning: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "reclaim",
				Subsystem: "clean",
				Name:      "skipped_running_total",
				Help:      "Number of items skipped because their owning application was running.",
			},
		),
		ScanBytes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "reclaim",
				Subsystem: "scan",
				Name:      "reclaimable_bytes",
				Help:      "Reclaimable bytes found by the last scan, broken down by category.",
			},
			[]string{"category"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "reclaim",
				Subsystem: "scan",
				Name:      "duration_seconds",
				Help:      "Duration of scan sessions in seconds.",
				Buckets:   DefaultScanDurationBuckets,
			},
		),
	}
}

// Registry returns the registry the metrics live in
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRemoved counts one removed item
func (m *Metrics) RecordRemoved(method string, bytes int64) {
	if m == nil {
		return
	}
	m.ItemsRemoved.WithLabelValues(method).Inc()
	if bytes > 0 {
		m.BytesRemoved.WithLabelValues(method).Add(float64(bytes))
	}
}

// RecordError counts one failed item
func (m *Metrics) RecordError(reason string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(reason).Inc()
}

// RecordSkippedRunning counts one running-owner skip
func (m *Metrics) RecordSkippedRunning() {
	if m == nil {
		return
	}
	m.SkippedRunning.Inc()
}

// RecordScan sets the reclaimable size of a category
func (m *Metrics) RecordScan(category string, bytes int64) {
	if m == nil {
		return
	}
	m.ScanBytes.WithLabelValues(category).Set(float64(bytes))
}

// ObserveScanDuration records the duration of one scan session
func (m *Metrics) ObserveScanDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(d.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
