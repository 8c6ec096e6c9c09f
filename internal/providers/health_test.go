package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeFactorNeutralUntilObserved(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})
	assert.Equal(t, 0.7, tracker.RuntimeFactor("unseen"))
}

func TestRecordMovesEWMAs(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})

	// baseline 0.8; one success with alpha 0.2 → 0.2*1 + 0.8*0.8 = 0.84
	tracker.Record("fast", StatusSuccess, 100*time.Millisecond)
	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 84, snap[0].SuccessRate)

	// latency: 0.2*100 + 0.8*1500 = 1220
	assert.Equal(t, 1220, snap[0].LatencyMS)
}

func TestFailuresDegradeFactor(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})

	healthy := tracker.RuntimeFactor
	for i := 0; i < 10; i++ {
		tracker.Record("good", StatusSuccess, 100*time.Millisecond)
		tracker.Record("bad", StatusFailure, 6*time.Second)
	}
	assert.Greater(t, healthy("good"), healthy("bad"))
	assert.GreaterOrEqual(t, healthy("bad"), 0.15, "factor floor protects against permanent zeroing")
}

func TestCacheObservationsMoveNothing(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})
	tracker.Record("p", StatusCacheHit, 0)
	tracker.Record("p", StatusCacheMiss, 0)

	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 80, snap[0].SuccessRate)
	assert.Equal(t, 1500, snap[0].LatencyMS)
	assert.Equal(t, int64(2), snap[0].Observations)
}

func TestStubCountsAsWeakSuccess(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})
	for i := 0; i < 20; i++ {
		tracker.Record("stubby", StatusStub, 0)
	}
	snap := tracker.Snapshot()
	require.Len(t, snap, 1)
	assert.InDelta(t, 35, snap[0].SuccessRate, 2)
}

func TestIntegrationConfidenceBlendsBaseAndRuntime(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})

	// Unobserved: 0.9 * (0.3 + 0.7*0.7) = 0.711
	assert.InDelta(t, 0.711, tracker.IntegrationConfidence("unseen", 0.9), 1e-9)

	// Base is clamped before blending.
	assert.LessOrEqual(t, tracker.IntegrationConfidence("unseen", 5), 1.0)
	assert.Equal(t, 0.0, tracker.IntegrationConfidence("unseen", -1))
}

func TestSnapshotSortsBySuccessRate(t *testing.T) {
	tracker := NewHealthTracker(HealthParams{})
	for i := 0; i < 10; i++ {
		tracker.Record("winner", StatusSuccess, time.Millisecond)
		tracker.Record("loser", StatusFailure, time.Second)
	}

	snap := tracker.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "winner", snap[0].ProviderID)
	assert.Equal(t, "loser", snap[1].ProviderID)
}
