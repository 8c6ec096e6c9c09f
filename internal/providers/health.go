// Package providers fetches quotes from liquidity source integrations,
// guarding each with a rate limiter and a circuit breaker and tracking
// runtime health that feeds back into integration confidence.
package providers

import (
	"sort"
	"sync"
	"time"
)

// QuoteStatus classifies the outcome of one provider fetch.
type QuoteStatus string

const (
	StatusSuccess   QuoteStatus = "success"
	StatusFailure   QuoteStatus = "failure"
	StatusStub      QuoteStatus = "stub"
	StatusCacheHit  QuoteStatus = "cache_hit"
	StatusCacheMiss QuoteStatus = "cache_miss"
)

// HealthParams tunes the tracker. Zero values take the defaults.
type HealthParams struct {
	Alpha             float64
	BaselineSuccess   float64
	BaselineLatencyMS float64
}

type providerStats struct {
	ewmaSuccess   float64
	ewmaLatencyMS float64
	n             int64
	lastUpdatedAt time.Time
}

// HealthTracker keeps an exponentially weighted success rate and latency
// per provider and folds them into a runtime confidence factor.
type HealthTracker struct {
	mu     sync.RWMutex
	stats  map[string]*providerStats
	params HealthParams
	now    func() time.Time
}

// ProviderHealth is one provider's snapshot for the status surface.
type ProviderHealth struct {
	ProviderID   string  `json:"providerId"`
	SuccessRate  int     `json:"successRate"`
	LatencyMS    int     `json:"latencyMs"`
	Observations int64   `json:"observations"`
	Factor       float64 `json:"runtimeFactor"`
}

// NewHealthTracker returns a tracker with the given smoothing parameters.
func NewHealthTracker(params HealthParams) *HealthTracker {
	if params.Alpha <= 0 {
		params.Alpha = 0.2
	}
	if params.BaselineSuccess <= 0 {
		params.BaselineSuccess = 0.8
	}
	if params.BaselineLatencyMS <= 0 {
		params.BaselineLatencyMS = 1500
	}
	return &HealthTracker{
		stats:  make(map[string]*providerStats),
		params: params,
		now:    time.Now,
	}
}

// Record folds one observation into the provider's EWMAs. Cache hits and
// misses count as observations but move neither average; a stub response
// counts as a weak success.
func (t *HealthTracker) Record(providerID string, status QuoteStatus, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.stats[providerID]
	if !ok {
		current = &providerStats{
			ewmaSuccess:   t.params.BaselineSuccess,
			ewmaLatencyMS: t.params.BaselineLatencyMS,
		}
		t.stats[providerID] = current
	}
	current.n++
	current.lastUpdatedAt = t.now()

	var successValue float64
	hasSuccess := true
	switch status {
	case StatusSuccess:
		successValue = 1
	case StatusFailure:
		successValue = 0
	case StatusStub:
		successValue = 0.35
	default:
		hasSuccess = false
	}

	alpha := t.params.Alpha
	if hasSuccess {
		current.ewmaSuccess = alpha*successValue + (1-alpha)*current.ewmaSuccess
	}
	if duration > 0 {
		current.ewmaLatencyMS = alpha*float64(duration.Milliseconds()) + (1-alpha)*current.ewmaLatencyMS
	}
}

// RuntimeFactor scores a provider in [0,1]. Unobserved providers sit at a
// neutral 0.7; observed ones combine success rate with a latency score that
// reaches zero at 8s, floored so one bad spike cannot zero a provider out.
func (t *HealthTracker) RuntimeFactor(providerID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[providerID]
	if !ok {
		return 0.7
	}
	latencyScore := clamp01(1 - s.ewmaLatencyMS/8000)
	successScore := clamp01(s.ewmaSuccess)
	return clamp01(0.15 + 0.85*(successScore*latencyScore))
}

// IntegrationConfidence blends a provider's configured base confidence with
// its runtime health.
func (t *HealthTracker) IntegrationConfidence(providerID string, base float64) float64 {
	return clamp01(clamp01(base) * (0.3 + 0.7*t.RuntimeFactor(providerID)))
}

// Snapshot returns all provider stats sorted by success rate descending.
func (t *HealthTracker) Snapshot() []ProviderHealth {
	t.mu.RLock()
	out := make([]ProviderHealth, 0, len(t.stats))
	for id, s := range t.stats {
		out = append(out, ProviderHealth{
			ProviderID:   id,
			SuccessRate:  int(s.ewmaSuccess*100 + 0.5),
			LatencyMS:    int(s.ewmaLatencyMS + 0.5),
			Observations: s.n,
		})
	}
	t.mu.RUnlock()

	for i := range out {
		out[i].Factor = t.RuntimeFactor(out[i].ProviderID)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
