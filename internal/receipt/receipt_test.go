package receipt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/rank"
)

func request() domain.QuoteRequest {
	return domain.QuoteRequest{
		ChainID:     56,
		SellToken:   "0xsell",
		BuyToken:    "0xbuy",
		SellAmount:  "1000000",
		SlippageBps: 50,
		Mode:        domain.ModeNormal,
	}
}

func TestIDIsDeterministic(t *testing.T) {
	a := ID(request())
	b := ID(request())

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "rcpt_"))
	assert.Len(t, a, len("rcpt_")+24)
}

func TestIDVariesByRequest(t *testing.T) {
	base := ID(request())

	other := request()
	other.BuyToken = "0xother"
	assert.NotEqual(t, base, ID(other))
}

func TestIDTreatsEmptyModeAsNormal(t *testing.T) {
	implicit := request()
	implicit.Mode = ""
	assert.Equal(t, ID(request()), ID(implicit))
}

func TestBuildAssemblesReceipt(t *testing.T) {
	winner := "kyberswap"
	result := rank.Result{
		BEQRecommendedProviderID: &winner,
		BestRawOutputProviderID:  &winner,
		WhyWinner:                []domain.WhyRule{domain.WhyRankedByBeq, domain.WhyBeqFormula},
		RankedQuotes:             []domain.RankedQuote{{ProviderID: winner}},
		BestRawQuotes:            []domain.RankedQuote{{ProviderID: winner}},
	}
	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	receipt := Build(request(), result, domain.DefaultAssumptions(), nil, now)

	assert.Equal(t, ID(request()), receipt.ID)
	assert.Equal(t, "2026-08-29T10:30:00Z", receipt.CreatedAt)
	assert.Equal(t, request(), receipt.Request)
	require.NotNil(t, receipt.BEQRecommendedProviderID)
	assert.Equal(t, winner, *receipt.BEQRecommendedProviderID)
	assert.Equal(t, result.WhyWinner, receipt.WhyWinner)
	assert.NotNil(t, receipt.Warnings)
	assert.Empty(t, receipt.Warnings)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "rcpt_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	receipt := Build(request(), rank.Result{}, domain.DefaultAssumptions(), nil, time.Now())
	require.NoError(t, store.Put(ctx, receipt))

	got, err := store.Get(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, receipt, *got)
}

func TestMemoryStoreOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Build(request(), rank.Result{}, domain.DefaultAssumptions(), nil, time.Unix(100, 0))
	second := Build(request(), rank.Result{}, domain.DefaultAssumptions(), []string{"provider odos timed out"}, time.Unix(200, 0))
	require.NoError(t, store.Put(ctx, first))
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Warnings, got.Warnings)
}
