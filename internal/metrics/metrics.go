package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaa/soundgrab/internal/engine"
)

const namespace = "soundgrab"

// Metrics owns a private registry so tests and multiple apps in one process
// don't collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	downloadsStarted  *prometheus.CounterVec
	downloadsFinished *prometheus.CounterVec
	downloadDuration  *prometheus.HistogramVec
	activeDownloads   prometheus.Gauge
	logins            *prometheus.CounterVec
	cleanupRemoved    *prometheus.CounterVec
	cleanupFailed     *prometheus.CounterVec
	filesServed       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		downloadsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_started_total",
			Help:      "Download jobs started, by downloader.",
		}, []string{"adapter"}),
		downloadsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_finished_total",
			Help:      "Download jobs finished, by downloader, final state and packaging outcome.",
		}, []string{"adapter", "state", "outcome"}),
		downloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Wall time of download jobs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"adapter", "state"}),
		activeDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_active",
			Help:      "Download jobs currently running.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		cleanupRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_removed_total",
			Help:      "Download directories removed, by reason.",
		}, []string{"reason"}),
		cleanupFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Download directories that could not be removed, by reason.",
		}, []string{"reason"}),
		filesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_served_total",
			Help:      "File download requests, by status code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.downloadsStarted,
		m.downloadsFinished,
		m.downloadDuration,
		m.activeDownloads,
		m.logins,
		m.cleanupRemoved,
		m.cleanupFailed,
		m.filesServed,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) JobStarted(adapter string) {
	m.downloadsStarted.WithLabelValues(adapter).Inc()
	m.activeDownloads.Inc()
}

func (m *Metrics) JobFinished(adapter string, state engine.JobState, outcome engine.Outcome, d time.Duration) {
	m.activeDownloads.Dec()
	label := string(outcome)
	if label == "" {
		label = "none"
	}
	m.downloadsFinished.WithLabelValues(adapter, string(state), label).Inc()
	m.downloadDuration.WithLabelValues(adapter, string(state)).Observe(d.Seconds())
}

func (m *Metrics) LoginAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) Removed(reason string) {
	m.cleanupRemoved.WithLabelValues(reason).Inc()
}

func (m *Metrics) RemoveFailed(reason string) {
	m.cleanupFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) FileServed(code int) {
	m.filesServed.WithLabelValues(strconv.Itoa(code)).Inc()
}
