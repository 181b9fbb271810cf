package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type UploaderMetrics struct {
	registry *prometheus.Registry

	uploadTotal    *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadInFlight prometheus.Gauge
	pollAttempts   prometheus.Histogram
}

func NewUploaderMetrics(service string) *UploaderMetrics {
	registry := prometheus.NewRegistry()

	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rips",
			Subsystem: "uploader",
			Name:      "invoice_upload_total",
			Help:      "Total processed invoice uploads by outcome.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	uploadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rips",
			Subsystem: "uploader",
			Name:      "invoice_upload_duration_seconds",
			Help:      "Upload pipeline duration in seconds by outcome.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 300},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
		[]string{"outcome"},
	)
	uploadInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rips",
			Subsystem: "uploader",
			Name:      "invoice_upload_in_flight",
			Help:      "Number of in-flight upload pipelines.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pollAttempts := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "rips",
			Subsystem: "uploader",
			Name:      "load_poll_attempts",
			Help:      "Status poll fetches needed before a terminal snapshot.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(uploadTotal, uploadDuration, uploadInFlight, pollAttempts)

	return &UploaderMetrics{
		registry:       registry,
		uploadTotal:    uploadTotal,
		uploadDuration: uploadDuration,
		uploadInFlight: uploadInFlight,
		pollAttempts:   pollAttempts,
	}
}

func (m *UploaderMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *UploaderMetrics) StartUpload() {
	m.uploadInFlight.Inc()
}

func (m *UploaderMetrics) FinishUpload(duration time.Duration, success bool) {
	m.uploadInFlight.Dec()

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.uploadTotal.WithLabelValues(outcome).Inc()
	m.uploadDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *UploaderMetrics) ObservePollAttempts(attempts int) {
	if attempts <= 0 {
		return
	}
	m.pollAttempts.Observe(float64(attempts))
}
