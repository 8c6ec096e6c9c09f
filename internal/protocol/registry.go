// Package protocol holds the static six-domain protocol risk registry.
//
// The table is a hand-curated policy artifact: values are review decisions,
// not computed, and must only change through review. Unregistered providers
// get the conservative all-MEDIUM default.
package protocol

import "github.com/swappilot/quoterank/internal/domain"

// RiskLevels is the six-domain risk profile for one provider.
type RiskLevels struct {
	Security   domain.RiskLevel
	Compliance domain.RiskLevel
	Financial  domain.RiskLevel
	Technology domain.RiskLevel
	Operations domain.RiskLevel
	Governance domain.RiskLevel
}

// Named tiers. TIER1: established aggregators with audits and track record.
// TIER2: established DEXes and wallet integrations. TIER3: long-tail venues
// with unclear governance.
var (
	tier1 = RiskLevels{
		Security:   domain.RiskLow,
		Compliance: domain.RiskLow,
		Financial:  domain.RiskLow,
		Technology: domain.RiskLow,
		Operations: domain.RiskLow,
		Governance: domain.RiskLow,
	}

	tier2 = RiskLevels{
		Security:   domain.RiskLow,
		Compliance: domain.RiskMedium,
		Financial:  domain.RiskLow,
		Technology: domain.RiskLow,
		Operations: domain.RiskMedium,
		Governance: domain.RiskMedium,
	}

	tier3 = RiskLevels{
		Security:   domain.RiskMedium,
		Compliance: domain.RiskMedium,
		Financial:  domain.RiskMedium,
		Technology: domain.RiskMedium,
		Operations: domain.RiskMedium,
		Governance: domain.RiskHigh,
	}

	defaultLevels = RiskLevels{
		Security:   domain.RiskMedium,
		Compliance: domain.RiskMedium,
		Financial:  domain.RiskMedium,
		Technology: domain.RiskMedium,
		Operations: domain.RiskMedium,
		Governance: domain.RiskMedium,
	}
)

var registry = map[string]RiskLevels{
	"0x":             tier1,
	"1inch":          tier1,
	"odos":           tier1,
	"openocean":      tier1,
	"kyberswap":      tier1,
	"paraswap":       tier1,
	"okx-dex":        tier1,
	"pancakeswap":    tier2,
	"uniswap-v2":     tier2,
	"uniswap-v3":     tier2,
	"thena":          tier2,
	"metamask":       tier2,
	"binance-wallet": tier2,
	"squadswap":      tier3,
	"fstswap":        tier3,
	"liquidmesh":     tier3,
}

// Lookup returns the registered risk profile for a provider id, or the
// all-MEDIUM default when the provider is not in the table.
func Lookup(providerID string) RiskLevels {
	if levels, ok := registry[providerID]; ok {
		return levels
	}
	return defaultLevels
}
