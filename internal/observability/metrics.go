package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skin2"

type moduleMetrics struct {
	activeSessions  prometheus.Gauge
	sessionsEvicted prometheus.Counter

	replyTotal    *prometheus.CounterVec
	replyDuration *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimitedTotal    prometheus.Counter

	lookupDuration *prometheus.HistogramVec
	configReloads  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "active_sessions",
					Help:      "Sessions currently held in memory.",
				},
			),
			sessionsEvicted: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "sessions_evicted_total",
					Help:      "Sessions removed by the idle sweeper.",
				},
			),
			replyTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "reply_total",
					Help:      "Reply generations by channel and status.",
				},
				[]string{"channel", "status"},
			),
			replyDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "reply_duration_seconds",
					Help:      "Reply generation duration in seconds by channel.",
					Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
				[]string{"channel"},
			),
			httpRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "http_requests_total",
					Help:      "HTTP requests by route and status code.",
				},
				[]string{"route", "code"},
			),
			httpRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "http_request_duration_seconds",
					Help:      "HTTP request duration in seconds by route.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			rateLimitedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "rate_limited_total",
					Help:      "Requests rejected by the per-client rate limiter.",
				},
			),
			lookupDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "lookup_duration_seconds",
					Help:      "Reference database query duration in seconds by store and operation.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"store", "op"},
			),
			configReloads: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "config_reloads_total",
					Help:      "Config file reloads by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsEvicted,
			m.replyTotal,
			m.replyDuration,
			m.httpRequestsTotal,
			m.httpRequestDuration,
			m.rateLimitedTotal,
			m.lookupDuration,
			m.configReloads,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordEvictions(count int) {
	if count <= 0 {
		return
	}
	m := getMetrics()
	m.sessionsEvicted.Add(float64(count))
}

func RecordReply(channel string, duration time.Duration, success bool) {
	m := getMetrics()
	m.replyTotal.WithLabelValues(channel, status(success)).Inc()
	m.replyDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

func RecordHTTPRequest(route, code string, duration time.Duration) {
	m := getMetrics()
	m.httpRequestsTotal.WithLabelValues(route, code).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func RecordRateLimited() {
	m := getMetrics()
	m.rateLimitedTotal.Inc()
}

func RecordLookup(store, op string, duration time.Duration) {
	m := getMetrics()
	m.lookupDuration.WithLabelValues(store, op).Observe(duration.Seconds())
}

func RecordConfigReload(success bool) {
	m := getMetrics()
	m.configReloads.WithLabelValues(status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
