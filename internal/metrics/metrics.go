// Package metrics exposes Prometheus instrumentation for backtest runs and
// the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "enercast"

// Registry owns a private Prometheus registry with run and HTTP metrics.
// It implements backtest.Recorder.
type Registry struct {
	*prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
	backtests    *prometheus.CounterVec
	duration     prometheus.Histogram
	windows      prometheus.Counter
	signals      *prometheus.CounterVec
	trades       *prometheus.CounterVec
	exhaustions  prometheus.Counter
	jobsActive   *prometheus.GaugeVec
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		Registry: reg,

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status class.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests being served.",
		}),

		backtests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtests_total",
			Help:      "Backtest runs by outcome.",
		}, []string{"status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Wall time of a backtest run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		windows: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walkforward_windows_total",
			Help:      "Walk-forward windows evaluated.",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_generated_total",
			Help:      "Trading signals by strategy kind and action.",
		}, []string{"strategy", "action"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Closed simulated trades by strategy kind.",
		}, []string{"strategy"}),
		exhaustions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capital_exhausted_total",
			Help:      "Runs whose capital reached zero.",
		}),
		jobsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Running jobs by type.",
		}, []string{"type"}),
	}
}

// RecordRequest records one served HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	r.httpRequests.WithLabelValues(method, path, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(method, path).Observe(duration)
}

func (r *Registry) InFlightInc() { r.httpInFlight.Inc() }

func (r *Registry) InFlightDec() { r.httpInFlight.Dec() }

// RecordBacktest records a finished run and its duration in seconds.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtests.WithLabelValues(status).Inc()
	r.duration.Observe(duration)
}

func (r *Registry) RecordWindows(count int) {
	r.windows.Add(float64(count))
}

func (r *Registry) RecordSignal(strategy, action string) {
	r.signals.WithLabelValues(strategy, action).Inc()
}

func (r *Registry) RecordTrades(strategy string, count int) {
	r.trades.WithLabelValues(strategy).Add(float64(count))
}

func (r *Registry) RecordCapitalExhausted() {
	r.exhaustions.Inc()
}

// SetJobsActive sets the gauge for one job type.
func (r *Registry) SetJobsActive(jobType string, count int) {
	r.jobsActive.WithLabelValues(jobType).Set(float64(count))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
