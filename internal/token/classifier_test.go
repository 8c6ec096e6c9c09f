package token

import (
	"testing"

	"github.com/swappilot/quoterank/internal/domain"
)

func TestClassify(t *testing.T) {
	sets := NewSets(
		[]string{"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
		[]string{"0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC", "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"},
	)

	cases := []struct {
		name  string
		token string
		want  domain.TokenClassification
	}{
		{"known exact case", "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", domain.TokenKnown},
		{"known differing case", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", domain.TokenKnown},
		{"meme", "0xcccccccccccccccccccccccccccccccccccccccc", domain.TokenMeme},
		{"known wins over meme", "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", domain.TokenKnown},
		{"unmatched", "0xdddddddddddddddddddddddddddddddddddddddd", domain.TokenUnknown},
		{"empty", "", domain.TokenUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sets.Classify(tc.token); got != tc.want {
				t.Errorf("Classify(%q) = %s, want %s", tc.token, got, tc.want)
			}
		})
	}
}

func TestClassifyEmptySets(t *testing.T) {
	sets := NewSets(nil, nil)
	if got := sets.Classify("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"); got != domain.TokenUnknown {
		t.Errorf("expected UNKNOWN from empty sets, got %s", got)
	}
}
