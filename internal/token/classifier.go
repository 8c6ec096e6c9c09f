// Package token classifies token addresses against configured allowlists.
package token

import (
	"strings"

	"github.com/swappilot/quoterank/internal/domain"
)

// Sets holds the configured address allowlists. Addresses compare
// case-insensitively; the sets are normalized once at construction.
type Sets struct {
	known map[string]struct{}
	meme  map[string]struct{}
}

// NewSets builds normalized lookup sets from configured address lists.
func NewSets(known, meme []string) *Sets {
	s := &Sets{
		known: make(map[string]struct{}, len(known)),
		meme:  make(map[string]struct{}, len(meme)),
	}
	for _, a := range known {
		s.known[strings.ToLower(a)] = struct{}{}
	}
	for _, a := range meme {
		s.meme[strings.ToLower(a)] = struct{}{}
	}
	return s
}

// Classify resolves a token address to KNOWN, MEME or UNKNOWN. KNOWN wins
// when an address appears in both sets; unmatched addresses are UNKNOWN.
// No errors: classification is total.
func (s *Sets) Classify(token string) domain.TokenClassification {
	a := strings.ToLower(token)
	if _, ok := s.known[a]; ok {
		return domain.TokenKnown
	}
	if _, ok := s.meme[a]; ok {
		return domain.TokenMeme
	}
	return domain.TokenUnknown
}
