// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe on a nil *Metrics.
type Metrics struct {
	// Run metrics
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RunsInFlight prometheus.Gauge

	// Ingestion metrics
	SeriesFetched *prometheus.CounterVec

	// Search metrics
	WindowsEvaluated prometheus.Counter
	WindowsRetained  prometheus.Counter
	SelectedMean     prometheus.Gauge

	// Simulation metrics
	TradesSimulated *prometheus.CounterVec
	FinalEquity     *prometheus.GaugeVec

	// Benchmark metrics
	BenchmarkFallbacks prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "ipo_window_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of backtest runs by outcome",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Duration of backtest phases",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"phase"}),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "in_flight",
			Help:      "Number of runs currently executing",
		}),

		SeriesFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "series_fetched_total",
			Help:      "Listing-day series fetches by source and status",
		}, []string{"source", "status"}),

		WindowsEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "windows_evaluated_total",
			Help:      "Total number of candidate windows evaluated",
		}),
		WindowsRetained: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "windows_retained_total",
			Help:      "Total number of windows meeting minimum support",
		}),
		SelectedMean: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "selected_mean_return_percent",
			Help:      "Mean training return of the last selected window",
		}),

		TradesSimulated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_total",
			Help:      "Total number of simulated trades by subset",
		}, []string{"subset"}),
		FinalEquity: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "final_equity",
			Help:      "Final equity of the last run by subset",
		}, []string{"subset"}),

		BenchmarkFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benchmark",
			Name:      "fallbacks_total",
			Help:      "Benchmark computations that used the assumed annual return",
		}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last completed run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RunStarted marks a run in flight.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInFlight.Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(outcome string, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.RunsInFlight.Dec()
	m.RunsTotal.WithLabelValues(outcome).Inc()
	if outcome != "error" {
		m.LastSuccessfulRun.Set(float64(finishedAt.Unix()))
	}
}

// RecordPhase records the duration of a run phase.
func (m *Metrics) RecordPhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordSeriesFetch records a series fetch outcome.
func (m *Metrics) RecordSeriesFetch(source, status string) {
	if m == nil {
		return
	}
	m.SeriesFetched.WithLabelValues(source, status).Inc()
}

// RecordWindowSearch records window counts and the selected mean, if any.
func (m *Metrics) RecordWindowSearch(evaluated, retained int, selectedMean *float64) {
	if m == nil {
		return
	}
	m.WindowsEvaluated.Add(float64(evaluated))
	m.WindowsRetained.Add(float64(retained))
	if selectedMean != nil {
		m.SelectedMean.Set(*selectedMean)
	}
}

// RecordSimulation records a simulated subset.
func (m *Metrics) RecordSimulation(subset string, trades int, finalEquity float64) {
	if m == nil {
		return
	}
	m.TradesSimulated.WithLabelValues(subset).Add(float64(trades))
	m.FinalEquity.WithLabelValues(subset).Set(finalEquity)
}

// RecordBenchmarkFallback counts a benchmark fallback.
func (m *Metrics) RecordBenchmarkFallback() {
	if m == nil {
		return
	}
	m.BenchmarkFallbacks.Inc()
}
