// Package metrics exposes Prometheus collectors for ledger imports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Row outcomes.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeError   = "error"
)

// ImportMetrics counts import batches and rows.
type ImportMetrics struct {
	rows          *prometheus.CounterVec
	rowErrors     *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	duplicates    prometheus.Counter
}

// NewImportMetrics registers the import collectors on reg. A nil reg
// leaves them unregistered, which tests rely on.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	m := &ImportMetrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Imported rows by outcome.",
		}, []string{"outcome"}),
		rowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "import",
			Name:      "row_errors_total",
			Help:      "Rejected rows by error kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "import",
			Name:      "batches_total",
			Help:      "Import batches by status.",
		}, []string{"status"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "koperasi",
			Subsystem: "import",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of an import batch.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "koperasi",
			Subsystem: "import",
			Name:      "likely_duplicates_total",
			Help:      "Rows that matched a transaction already posted today.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rows, m.rowErrors, m.batches, m.batchDuration, m.duplicates)
	}
	return m
}

// Row counts one row outcome. kind is only used for errors.
func (m *ImportMetrics) Row(outcome, kind string) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(outcome).Inc()
	if outcome == OutcomeError {
		m.rowErrors.WithLabelValues(kind).Inc()
	}
}

// Duplicate counts a likely duplicate row.
func (m *ImportMetrics) Duplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// Batch records a finished batch.
func (m *ImportMetrics) Batch(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(status).Inc()
	m.batchDuration.Observe(elapsed.Seconds())
}
