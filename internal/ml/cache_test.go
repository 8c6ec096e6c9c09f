package ml

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swappilot/quoterank/internal/domain"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(10, time.Minute)
	pred := Prediction{MEVExposureLevel: domain.RiskHigh, Source: SourceModel}

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("k", pred)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, pred, got)
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCache(10, 30*time.Second)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.Set("k", Prediction{Source: SourceModel})

	now = now.Add(29 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCacheEvictsOldestInserted(t *testing.T) {
	c := NewCache(1000, time.Minute)
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("k%d", i), Prediction{Source: SourceModel})
	}
	require.Equal(t, 1000, c.Len())

	// Read the oldest entry so an access-ordered LRU would evict k1 instead.
	_, ok := c.Get("k0")
	require.True(t, ok)

	c.Set("k1000", Prediction{Source: SourceModel})
	assert.Equal(t, 1000, c.Len())

	_, ok = c.Get("k0")
	assert.False(t, ok, "first-inserted entry must be the one evicted")
	_, ok = c.Get("k1")
	assert.True(t, ok)
	_, ok = c.Get("k1000")
	assert.True(t, ok)
}

func TestCacheResetKeepsInsertionPosition(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", Prediction{Confidence: 0.1})
	c.Set("b", Prediction{Confidence: 0.2})

	// Refreshing "a" must not move it to the back of the eviction queue.
	c.Set("a", Prediction{Confidence: 0.9})
	c.Set("c", Prediction{Confidence: 0.3})

	_, ok := c.Get("a")
	assert.False(t, ok)
	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 0.2, got.Confidence)
	_, ok = c.Get("c")
	assert.True(t, ok)
}
