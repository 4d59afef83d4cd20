// Package metrics exposes Prometheus instrumentation for the scan
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ScanMetrics tracks how receipts move through the OCR and extraction
// stages.
type ScanMetrics struct {
	registry *prometheus.Registry

	scansTotal        *prometheus.CounterVec
	scanFailuresTotal prometheus.Counter
	submissionsTotal  *prometheus.CounterVec
	confidence        prometheus.Histogram
}

// NewScanMetrics creates a registry with the scan pipeline collectors.
func NewScanMetrics() *ScanMetrics {
	registry := prometheus.NewRegistry()

	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kharcha_scan",
			Name:      "scans_total",
			Help:      "Receipts processed, by OCR engine that produced the text.",
		},
		[]string{"engine"},
	)
	scanFailuresTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kharcha_scan",
			Name:      "scan_failures_total",
			Help:      "Scans that failed before a draft could be stored.",
		},
	)
	submissionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kharcha_scan",
			Name:      "submissions_total",
			Help:      "Draft submissions to the backend, by outcome.",
		},
		[]string{"outcome"},
	)
	confidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kharcha_scan",
			Name:      "extraction_confidence",
			Help:      "Record-level confidence of extracted drafts.",
			Buckets:   []float64{0.18, 0.35, 0.62, 0.8, 0.92, 1},
		},
	)

	registry.MustRegister(scansTotal, scanFailuresTotal, submissionsTotal, confidence)

	return &ScanMetrics{
		registry:          registry,
		scansTotal:        scansTotal,
		scanFailuresTotal: scanFailuresTotal,
		submissionsTotal:  submissionsTotal,
		confidence:        confidence,
	}
}

// ObserveScan records one processed receipt.
func (m *ScanMetrics) ObserveScan(engine string, confidence float64) {
	m.scansTotal.WithLabelValues(engine).Inc()
	m.confidence.Observe(confidence)
}

// ObserveScanFailure records a scan that never produced a draft.
func (m *ScanMetrics) ObserveScanFailure() {
	m.scanFailuresTotal.Inc()
}

// ObserveSubmission records a draft submission attempt.
func (m *ScanMetrics) ObserveSubmission(outcome string) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *ScanMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
