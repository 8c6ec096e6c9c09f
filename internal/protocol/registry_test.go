package protocol

import (
	"testing"

	"github.com/swappilot/quoterank/internal/domain"
)

func TestLookupTiers(t *testing.T) {
	cases := []struct {
		providerID string
		want       RiskLevels
	}{
		{"1inch", tier1},
		{"okx-dex", tier1},
		{"pancakeswap", tier2},
		{"binance-wallet", tier2},
		{"squadswap", tier3},
		{"liquidmesh", tier3},
	}

	for _, tc := range cases {
		if got := Lookup(tc.providerID); got != tc.want {
			t.Errorf("Lookup(%q) = %+v, want %+v", tc.providerID, got, tc.want)
		}
	}
}

func TestLookupUnknownProviderDefaultsAllMedium(t *testing.T) {
	got := Lookup("some-new-venue")
	want := RiskLevels{
		Security:   domain.RiskMedium,
		Compliance: domain.RiskMedium,
		Financial:  domain.RiskMedium,
		Technology: domain.RiskMedium,
		Operations: domain.RiskMedium,
		Governance: domain.RiskMedium,
	}
	if got != want {
		t.Errorf("Lookup(unknown) = %+v, want all MEDIUM", got)
	}
}

func TestTier3GovernanceIsHigh(t *testing.T) {
	if Lookup("fstswap").Governance != domain.RiskHigh {
		t.Error("tier3 governance must be HIGH")
	}
}
