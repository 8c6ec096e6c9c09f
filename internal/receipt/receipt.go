// Package receipt builds and stores decision receipts, the auditable
// record of one ranking decision.
package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/rank"
)

// ErrNotFound is returned when no receipt exists for an id.
var ErrNotFound = errors.New("receipt not found")

// ID derives the receipt id for a request. Identical requests map to the
// same id, which is what makes a receipt retrievable without a lookup
// table: the serialization covers the identity-bearing fields in fixed
// order and the id is the "rcpt_"-prefixed digest head.
func ID(req domain.QuoteRequest) string {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeNormal
	}
	canonical := fmt.Sprintf("%d|%s|%s|%s|%d|%s",
		req.ChainID, req.SellToken, req.BuyToken, req.SellAmount, req.SlippageBps, mode)
	digest := sha256.Sum256([]byte(canonical))
	return "rcpt_" + hex.EncodeToString(digest[:])[:24]
}

// Build assembles the receipt for one ranking result.
func Build(req domain.QuoteRequest, result rank.Result, assumptions domain.NormalizationAssumptions, warnings []string, now time.Time) domain.DecisionReceipt {
	if warnings == nil {
		warnings = []string{}
	}
	return domain.DecisionReceipt{
		ID:                            ID(req),
		CreatedAt:                     now.UTC().Format(time.RFC3339),
		Request:                       req,
		BestExecutableQuoteProviderID: result.BestExecutableProviderID,
		BestRawOutputProviderID:       result.BestRawOutputProviderID,
		BEQRecommendedProviderID:      result.BEQRecommendedProviderID,
		RankedQuotes:                  result.RankedQuotes,
		BestRawQuotes:                 result.BestRawQuotes,
		Normalization:                 assumptions,
		WhyWinner:                     result.WhyWinner,
		Warnings:                      warnings,
	}
}

// Store persists receipts. Put overwrites an existing receipt with the same
// id; Get returns ErrNotFound for unknown ids.
type Store interface {
	Put(ctx context.Context, receipt domain.DecisionReceipt) error
	Get(ctx context.Context, id string) (*domain.DecisionReceipt, error)
}

// MemoryStore keeps receipts in memory. Used when no database is
// configured, and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]domain.DecisionReceipt
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{receipts: make(map[string]domain.DecisionReceipt)}
}

func (s *MemoryStore) Put(_ context.Context, receipt domain.DecisionReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[receipt.ID] = receipt
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.DecisionReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &receipt, nil
}
