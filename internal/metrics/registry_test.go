package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, r *Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchesLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchesLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRegistriesAreIsolated(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	a.RecordCacheHit("quote")

	assert.Equal(t, 1.0, counterValue(t, a, "quoterank_cache_hits_total", map[string]string{"cache_type": "quote"}))
	assert.Equal(t, 0.0, counterValue(t, b, "quoterank_cache_hits_total", map[string]string{"cache_type": "quote"}))
}

func TestRecordHelpers(t *testing.T) {
	r := NewRegistry()

	r.RecordPreflight(true)
	r.RecordPreflight(false)
	r.RecordPreflight(false)
	r.RecordEnrichment("heuristic")
	r.RecordProviderQuote("kyberswap", "ok", 120*time.Millisecond)

	assert.Equal(t, 1.0, counterValue(t, r, "quoterank_preflight_results_total", map[string]string{"outcome": "ok"}))
	assert.Equal(t, 2.0, counterValue(t, r, "quoterank_preflight_results_total", map[string]string{"outcome": "revert"}))
	assert.Equal(t, 1.0, counterValue(t, r, "quoterank_enrichment_source_total", map[string]string{"source": "heuristic"}))
	assert.Equal(t, 1.0, counterValue(t, r, "quoterank_provider_quotes_total", map[string]string{"provider": "kyberswap", "status": "ok"}))
}

func TestStepTimerRecords(t *testing.T) {
	r := NewRegistry()
	timer := r.StartStepTimer("rank")
	timer.Stop("success")

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "quoterank_step_duration_seconds" {
			for _, m := range mf.GetMetric() {
				if matchesLabels(m, map[string]string{"step": "rank", "result": "success"}) {
					found = true
					assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	assert.True(t, found)
}

func TestHandlerServesExposition(t *testing.T) {
	r := NewRegistry()
	r.RankRequests.WithLabelValues("NORMAL").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "quoterank_rank_requests_total")
}
