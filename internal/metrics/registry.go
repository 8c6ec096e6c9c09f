// Package metrics exposes the Prometheus instrumentation for the quote
// ranking pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics for quoterank. Construct one per
// process and inject it; there is no package-level instance.
type Registry struct {
	registry *prometheus.Registry

	// Step duration metrics
	StepDuration *prometheus.HistogramVec

	// Provider fetch metrics
	ProviderQuotes  *prometheus.CounterVec
	ProviderLatency *prometheus.HistogramVec

	// Risk and enrichment metrics
	PreflightResults *prometheus.CounterVec
	EnrichmentSource *prometheus.CounterVec

	// Cache performance metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Ranking metrics
	RankRequests   *prometheus.CounterVec
	BEQWinners     *prometheus.CounterVec
	ActiveRankings prometheus.Gauge

	// Receipt metrics
	ReceiptsPersisted *prometheus.CounterVec
}

// NewRegistry creates a registry with all quoterank metrics registered on a
// private Prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoterank_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),

		ProviderQuotes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_provider_quotes_total",
				Help: "Total provider quote fetches by provider and outcome",
			},
			[]string{"provider", "status"},
		),

		ProviderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quoterank_provider_latency_ms",
				Help:    "Provider quote fetch latency in milliseconds",
				Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"provider"},
		),

		PreflightResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_preflight_results_total",
				Help: "Total preflight simulations by outcome",
			},
			[]string{"outcome"},
		),

		EnrichmentSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_enrichment_source_total",
				Help: "Total signal enrichments by prediction source",
			},
			[]string{"source"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_cache_hits_total",
				Help: "Total number of cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_cache_misses_total",
				Help: "Total number of cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		RankRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_rank_requests_total",
				Help: "Total ranking requests by mode",
			},
			[]string{"mode"},
		),

		BEQWinners: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_beq_winners_total",
				Help: "Total BEQ recommendations by winning provider",
			},
			[]string{"provider"},
		),

		ActiveRankings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "quoterank_active_rankings",
				Help: "Number of ranking requests currently in flight",
			},
		),

		ReceiptsPersisted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoterank_receipts_persisted_total",
				Help: "Total decision receipts persisted by outcome",
			},
			[]string{"status"},
		),
	}

	r.registry.MustRegister(
		r.StepDuration,
		r.ProviderQuotes,
		r.ProviderLatency,
		r.PreflightResults,
		r.EnrichmentSource,
		r.CacheHits,
		r.CacheMisses,
		r.RankRequests,
		r.BEQWinners,
		r.ActiveRankings,
		r.ReceiptsPersisted,
	)

	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// StepTimer tracks execution time for one pipeline step.
type StepTimer struct {
	metrics *Registry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a pipeline step.
func (r *Registry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: r, step: step, start: time.Now()}
}

// Stop completes the step timing and records the observation.
func (st *StepTimer) Stop(result string) {
	st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(time.Since(st.start).Seconds())
}

// RecordCacheHit records a cache hit for the given cache type.
func (r *Registry) RecordCacheHit(cacheType string) {
	r.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss for the given cache type.
func (r *Registry) RecordCacheMiss(cacheType string) {
	r.CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordEnrichment records which predictor served an enrichment.
func (r *Registry) RecordEnrichment(source string) {
	r.EnrichmentSource.WithLabelValues(source).Inc()
}

// RecordPreflight records a preflight simulation outcome.
func (r *Registry) RecordPreflight(ok bool) {
	outcome := "revert"
	if ok {
		outcome = "ok"
	}
	r.PreflightResults.WithLabelValues(outcome).Inc()
}

// RecordProviderQuote records one provider fetch and its latency.
func (r *Registry) RecordProviderQuote(provider, status string, latency time.Duration) {
	r.ProviderQuotes.WithLabelValues(provider, status).Inc()
	r.ProviderLatency.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
}
