// Package risk turns a token classification, a preflight simulation result
// and provider capabilities into the full risk-signal bundle for one quote.
package risk

import (
	"fmt"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/protocol"
	"github.com/swappilot/quoterank/internal/token"
)

// Input is one quote's worth of assessment context.
type Input struct {
	Request      domain.QuoteRequest
	ProviderID   string
	SourceType   domain.SourceType
	Capabilities domain.Capabilities
	Preflight    domain.PreflightResult
}

// Assessor derives RiskSignals from assessment inputs. It is a pure
// computation over the injected allowlists; safe for concurrent use.
type Assessor struct {
	tokens *token.Sets
}

// NewAssessor creates an assessor over the given token allowlists.
func NewAssessor(tokens *token.Sets) *Assessor {
	return &Assessor{tokens: tokens}
}

func classReason(cls domain.TokenClassification) string {
	switch cls {
	case domain.TokenKnown:
		return "token_class:known"
	case domain.TokenMeme:
		return "token_class:meme"
	default:
		return "token_class:unknown"
	}
}

func sellabilityFrom(cls domain.TokenClassification, preflight domain.PreflightResult, isDeepLinkOnly bool) domain.Sellability {
	// Deep-link-only providers can never prove sellability; this branch
	// takes precedence over classification.
	if isDeepLinkOnly {
		return domain.Sellability{
			Status:     domain.SellabilityUncertain,
			Confidence: 0.9,
			Reasons:    []string{"deep_link_only_quote_not_available"},
		}
	}

	if cls == domain.TokenMeme || cls == domain.TokenUnknown {
		if !preflight.OK || preflight.PRevert >= 0.5 {
			conf := preflight.Confidence
			if conf < 0.6 {
				conf = 0.6
			}
			return domain.Sellability{
				Status:     domain.SellabilityFail,
				Confidence: conf,
				Reasons:    []string{classReason(cls), "sell_like_simulation_revert_or_high_pRevert"},
			}
		}
		return domain.Sellability{
			Status:     domain.SellabilityUncertain,
			Confidence: 0.3 + 0.4*preflight.Confidence,
			Reasons:    []string{classReason(cls), "insufficient_evidence_for_ok"},
		}
	}

	// KNOWN token.
	if preflight.OK && preflight.Confidence >= 0.6 && preflight.PRevert < 0.2 {
		return domain.Sellability{
			Status:     domain.SellabilityOK,
			Confidence: 0.8,
			Reasons:    []string{"token_class:known", "preflight_good"},
		}
	}
	return domain.Sellability{
		Status:     domain.SellabilityUncertain,
		Confidence: 0.5,
		Reasons:    []string{"token_class:known", "preflight_uncertain"},
	}
}

func revertRiskFrom(preflight domain.PreflightResult) domain.Signal {
	reasons := []string{
		fmt.Sprintf("preflight:pRevert:%.2f", preflight.PRevert),
		fmt.Sprintf("preflight:confidence:%.2f", preflight.Confidence),
	}
	switch {
	case !preflight.OK || preflight.PRevert >= 0.6:
		return domain.Signal{Level: domain.RiskHigh, Reasons: reasons}
	case preflight.PRevert >= 0.2:
		return domain.Signal{Level: domain.RiskMedium, Reasons: reasons}
	default:
		return domain.Signal{Level: domain.RiskLow, Reasons: reasons}
	}
}

func protocolRiskFrom(providerID string, isDeepLinkOnly bool) *domain.ProtocolRisk {
	levels := protocol.Lookup(providerID)
	reasons := []string{"protocol_registry:" + providerID}

	operations := levels.Operations
	technology := levels.Technology
	if isDeepLinkOnly {
		// Raise, never lower: an already-HIGH value stays HIGH.
		operations = operations.Max(domain.RiskMedium)
		technology = technology.Max(domain.RiskMedium)
	}

	return &domain.ProtocolRisk{
		Security:   domain.Signal{Level: levels.Security, Reasons: reasons},
		Compliance: domain.Signal{Level: levels.Compliance, Reasons: reasons},
		Financial:  domain.Signal{Level: levels.Financial, Reasons: reasons},
		Technology: domain.Signal{Level: technology, Reasons: reasons},
		Operations: domain.Signal{Level: operations, Reasons: reasons},
		Governance: domain.Signal{Level: levels.Governance, Reasons: reasons},
	}
}

// Assess produces the full risk-signal bundle for one quote. MEV, churn,
// liquidity and slippage start as documented heuristics; the enrichment
// engine may overwrite them downstream.
func (a *Assessor) Assess(in Input) domain.RiskSignals {
	cls := a.tokens.Classify(in.Request.BuyToken)
	isDeepLinkOnly := !in.Capabilities.Quote

	mevLevel := domain.RiskMedium
	if in.SourceType == domain.SourceDEX {
		mevLevel = domain.RiskHigh
	}

	preflight := in.Preflight
	medium := func() domain.Signal {
		return domain.Signal{Level: domain.RiskMedium, Reasons: []string{"heuristic_placeholder"}}
	}
	liquidity := medium()
	slippage := medium()

	return domain.RiskSignals{
		Sellability:  sellabilityFrom(cls, preflight, isDeepLinkOnly),
		RevertRisk:   revertRiskFrom(preflight),
		MEVExposure:  domain.Signal{Level: mevLevel, Reasons: []string{"heuristic_placeholder"}},
		Churn:        medium(),
		Liquidity:    &liquidity,
		Slippage:     &slippage,
		ProtocolRisk: protocolRiskFrom(in.ProviderID, isDeepLinkOnly),
		Preflight:    &preflight,
	}
}
