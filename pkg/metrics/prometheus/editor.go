package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/fseditor/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// editorMetrics is the Prometheus implementation of metrics.EditorMetrics.
type editorMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	bytesTransferred *prometheus.CounterVec
	uploadsStarted   prometheus.Counter
	uploadsFinished  *prometheus.CounterVec
	activeUploads    prometheus.Gauge
}

// NewEditorMetrics creates a Prometheus-backed EditorMetrics on the global
// registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewEditorMetrics() metrics.EditorMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopEditorMetrics()
	}
	return NewEditorMetricsWith(metrics.GetRegistry())
}

// NewEditorMetricsWith registers the editor metrics on reg.
func NewEditorMetricsWith(reg prometheus.Registerer) metrics.EditorMetrics {
	return &editorMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fseditor_requests_total",
				Help: "Total number of editor requests by operation and status code",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "fseditor_request_duration_milliseconds",
				Help: "Duration of editor requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fseditor_bytes_transferred_total",
				Help: "Total bytes served (read) or stored (write) by the editor",
			},
			[]string{"direction"},
		),
		uploadsStarted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "fseditor_uploads_started_total",
				Help: "Total number of upload sessions opened",
			},
		),
		uploadsFinished: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fseditor_uploads_finished_total",
				Help: "Total number of upload sessions closed, by outcome",
			},
			[]string{"outcome"},
		),
		activeUploads: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fseditor_active_uploads",
				Help: "Current number of open upload handles",
			},
		),
	}
}

func (m *editorMetrics) RecordRequest(operation string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *editorMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *editorMetrics) RecordUploadStarted() {
	m.uploadsStarted.Inc()
}

func (m *editorMetrics) RecordUploadFinished(outcome string) {
	m.uploadsFinished.WithLabelValues(outcome).Inc()
}

func (m *editorMetrics) SetActiveUploads(count int) {
	m.activeUploads.Set(float64(count))
}
