// Package metrics provides Prometheus metrics for the builder engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the engine
type Metrics struct {
	// builder operations
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ValidationFailures prometheus.Counter
	NoopSaves          prometheus.Counter

	// export queue
	ExportsQueued    *prometheus.CounterVec
	ExportsProcessed *prometheus.CounterVec
	RenderDuration   *prometheus.HistogramVec
	ExportsCleaned   prometheus.Counter

	// share links
	ShareResolutions *prometheus.CounterVec
}

// New registers the metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_operations_total",
			Help: "Total number of builder operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediakit_operation_duration_seconds",
			Help:    "Duration of builder operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.ValidationFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_validation_failures_total",
			Help: "Total number of saves rejected by validation",
		},
	)

	m.NoopSaves = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_noop_saves_total",
			Help: "Total number of saves that did not change the document",
		},
	)

	m.ExportsQueued = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_exports_queued_total",
			Help: "Total number of queued export jobs",
		},
		[]string{"format"},
	)

	m.ExportsProcessed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_exports_processed_total",
			Help: "Total number of processed export jobs",
		},
		[]string{"format", "status"},
	)

	m.RenderDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediakit_render_duration_seconds",
			Help:    "Duration of export rendering in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"format"},
	)

	m.ExportsCleaned = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mediakit_exports_cleaned_total",
			Help: "Total number of removed export artifacts and jobs",
		},
	)

	m.ShareResolutions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediakit_share_resolutions_total",
			Help: "Total number of share link resolutions",
		},
		[]string{"result"},
	)

	return m
}

// ObserveOperation records one builder operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ValidationFailed() {
	if m != nil {
		m.ValidationFailures.Inc()
	}
}

func (m *Metrics) NoopSave() {
	if m != nil {
		m.NoopSaves.Inc()
	}
}

func (m *Metrics) ExportQueued(format string) {
	if m != nil {
		m.ExportsQueued.WithLabelValues(format).Inc()
	}
}

// ExportProcessed records the outcome and render time of one export job.
func (m *Metrics) ExportProcessed(format, status string, renderTime time.Duration) {
	if m == nil {
		return
	}
	m.ExportsProcessed.WithLabelValues(format, status).Inc()
	m.RenderDuration.WithLabelValues(format).Observe(renderTime.Seconds())
}

func (m *Metrics) ExportsRemoved(n int) {
	if m != nil && n > 0 {
		m.ExportsCleaned.Add(float64(n))
	}
}

func (m *Metrics) ShareResolved(result string) {
	if m != nil {
		m.ShareResolutions.WithLabelValues(result).Inc()
	}
}
