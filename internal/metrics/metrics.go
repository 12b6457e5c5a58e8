package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for fetching and evaluation.
// All recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	FetchAttempts  *prometheus.CounterVec   // labels: source, outcome
	Fallbacks      *prometheus.CounterVec   // labels: reason
	FetchDuration  *prometheus.HistogramVec // labels: source
	CacheLookups   *prometheus.CounterVec   // labels: result=hit|miss
	Evaluations    prometheus.Counter
	EngineFailures prometheus.Counter
	LatestSignal   *prometheus.CounterVec // labels: signal
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendsentinel_fetch_attempts_total",
			Help: "Upstream fetch attempts by source and outcome",
		}, []string{"source", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendsentinel_synthetic_fallbacks_total",
			Help: "Requests served from synthetic data, by failure kind",
		}, []string{"reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trendsentinel_fetch_duration_seconds",
			Help:    "Wall time of one provider fetch including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendsentinel_cache_lookups_total",
			Help: "Bar cache lookups by result",
		}, []string{"result"}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendsentinel_evaluations_total",
			Help: "Completed signal evaluations",
		}),
		EngineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendsentinel_engine_failures_total",
			Help: "Evaluations rejected because of a structurally invalid series",
		}),
		LatestSignal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendsentinel_latest_signal_total",
			Help: "Signal on the last bar of each evaluation",
		}, []string{"signal"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FetchAttempts,
			m.Fallbacks,
			m.FetchDuration,
			m.CacheLookups,
			m.Evaluations,
			m.EngineFailures,
			m.LatestSignal,
		)
	}
	return m
}

func (m *Metrics) FetchAttempt(source, outcome string) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) Fallback(reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Evaluated records one finished evaluation and the label of its last signal.
func (m *Metrics) Evaluated(lastSignal string) {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
	m.LatestSignal.WithLabelValues(lastSignal).Inc()
}

func (m *Metrics) EngineFailed() {
	if m == nil {
		return
	}
	m.EngineFailures.Inc()
}
