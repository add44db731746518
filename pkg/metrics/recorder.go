// Package metrics records per-run counters for reconciliation and deletion
// and optionally exports them as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder aggregates one run's counters on a private registry, labeled by
// package. A nil *Recorder is safe everywhere: every method no-ops, so
// metrics stay off unless the run configures a textfile.
type Recorder struct {
	registry *prometheus.Registry
	start    time.Time

	versionsScanned prometheus.Counter
	indexFetches    *prometheus.CounterVec
	deletions       *prometheus.CounterVec
	orphans         prometheus.Gauge
	dangling        prometheus.Gauge
	sharedRefs      prometheus.Gauge
	runDuration     prometheus.Gauge
	runSuccess      prometheus.Gauge
}

// NewRecorder creates a recorder for one reconciliation run of pkg.
func NewRecorder(pkg string) *Recorder {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"package": pkg}

	return &Recorder{
		registry: reg,
		start:    time.Now(),
		versionsScanned: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name:        "regsweep_versions_scanned_total",
			Help:        "Package versions enumerated from the ledger.",
			ConstLabels: labels,
		}),
		indexFetches: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name:        "regsweep_index_fetches_total",
			Help:        "Manifest index fetches by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		deletions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name:        "regsweep_deletions_total",
			Help:        "Version deletions by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		orphans: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "regsweep_orphans",
			Help:        "Untagged, unreferenced versions found by the last run.",
			ConstLabels: labels,
		}),
		dangling: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "regsweep_dangling_references",
			Help:        "Digests referenced by an index but absent from the ledger.",
			ConstLabels: labels,
		}),
		sharedRefs: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "regsweep_shared_references",
			Help:        "Digests claimed as constituent by more than one index.",
			ConstLabels: labels,
		}),
		runDuration: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "regsweep_run_duration_seconds",
			Help:        "Wall-clock duration of the last run.",
			ConstLabels: labels,
		}),
		runSuccess: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "regsweep_run_success",
			Help:        "1 if the last run completed without failures, else 0.",
			ConstLabels: labels,
		}),
	}
}

// VersionScanned counts one enumerated ledger record.
func (r *Recorder) VersionScanned() {
	if r == nil {
		return
	}
	r.versionsScanned.Inc()
}

// IndexFetch counts one manifest index fetch with its outcome label.
func (r *Recorder) IndexFetch(outcome string) {
	if r == nil {
		return
	}
	r.indexFetches.WithLabelValues(outcome).Inc()
}

// Deletion counts one version deletion with its outcome label.
func (r *Recorder) Deletion(outcome string) {
	if r == nil {
		return
	}
	r.deletions.WithLabelValues(outcome).Inc()
}

// RecordReport stores the graph counts from the post-join report.
func (r *Recorder) RecordReport(orphans, dangling, sharedRefs int) {
	if r == nil {
		return
	}
	r.orphans.Set(float64(orphans))
	r.dangling.Set(float64(dangling))
	r.sharedRefs.Set(float64(sharedRefs))
}

// FinishRun stamps the run duration and success gauge. Call once, at the end.
func (r *Recorder) FinishRun(success bool) {
	if r == nil {
		return
	}
	r.runDuration.Set(time.Since(r.start).Seconds())
	if success {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
}
