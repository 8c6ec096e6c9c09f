// Package domain holds the shared data model for the quote ranking pipeline:
// closed enumerations for risk levels, sellability and execution mode, the
// quote request/response shapes, and the why-tag vocabulary used in score
// explanations. Everything here is plain data; behaviour lives in the
// pipeline packages.
package domain

import (
	"fmt"
	"math/big"
)

// RiskLevel is a closed three-level risk enumeration.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// rank maps levels to a comparable ordering (LOW < MEDIUM < HIGH).
func (l RiskLevel) rank() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 1
	}
}

// Max returns the riskier of l and other.
func (l RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > l.rank() {
		return other
	}
	return l
}

// WorstLevel returns the riskiest level among the given levels.
// An empty argument list returns LOW.
func WorstLevel(levels ...RiskLevel) RiskLevel {
	worst := RiskLow
	for _, l := range levels {
		worst = worst.Max(l)
	}
	return worst
}

// SellabilityStatus is the assessed ability to resell a bought token.
type SellabilityStatus string

const (
	SellabilityOK        SellabilityStatus = "OK"
	SellabilityUncertain SellabilityStatus = "UNCERTAIN"
	SellabilityFail      SellabilityStatus = "FAIL"
)

// Mode is the execution risk posture for a quote request.
type Mode string

const (
	ModeSafe   Mode = "SAFE"
	ModeNormal Mode = "NORMAL"
	ModeDegen  Mode = "DEGEN"
)

// ParseMode validates a mode string, defaulting empty input to NORMAL.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSafe, ModeNormal, ModeDegen:
		return Mode(s), nil
	case "":
		return ModeNormal, nil
	default:
		return "", fmt.Errorf("invalid mode %q", s)
	}
}

// SourceType distinguishes aggregator quotes from direct DEX quotes.
type SourceType string

const (
	SourceAggregator SourceType = "aggregator"
	SourceDEX        SourceType = "dex"
)

// TokenClassification is the allowlist classification of a token address.
type TokenClassification string

const (
	TokenKnown   TokenClassification = "KNOWN"
	TokenMeme    TokenClassification = "MEME"
	TokenUnknown TokenClassification = "UNKNOWN"
)

// WhyRule is one tag in the closed explanation vocabulary. The set is fixed:
// free text never appears in why trails, only in diagnostic reasons.
type WhyRule string

const (
	WhyBeqFormula              WhyRule = "beq_formula"
	WhyPreflightFailed         WhyRule = "preflight_failed"
	WhyPreflightOK             WhyRule = "preflight_ok"
	WhySafeExcludesPreflight   WhyRule = "mode_safe_excludes_preflight_fail"
	WhySellabilityDisabled     WhyRule = "sellability_check_disabled"
	WhySellabilityOK           WhyRule = "sellability_ok"
	WhySellabilityUncertain    WhyRule = "sellability_uncertain"
	WhySellabilityFail         WhyRule = "sellability_fail"
	WhySafeExcludesSellability WhyRule = "mode_safe_excludes_fail_sellability"
	WhyRiskLow                 WhyRule = "risk_low"
	WhyRiskMedium              WhyRule = "risk_medium"
	WhyRiskHigh                WhyRule = "risk_high"
	WhyIntegrationConfidence   WhyRule = "integration_confidence"
	WhyDeepLinkOnly            WhyRule = "deep_link_only"
	WhyRankedByBeq             WhyRule = "ranked_by_beq"
	WhyRankedByRawOutput       WhyRule = "ranked_by_raw_output"
)

// Capabilities describes what a provider integration can do for a request.
type Capabilities struct {
	Quote    bool `json:"quote" yaml:"quote"`
	BuildTx  bool `json:"buildTx" yaml:"build_tx"`
	DeepLink bool `json:"deepLink" yaml:"deep_link"`
}

// ScoringOptions carries optional per-request scoring overrides. Nil pointer
// fields mean "use the default" (both checks enabled).
type ScoringOptions struct {
	SellabilityCheck *bool `json:"sellabilityCheck,omitempty"`
	MEVAwareScoring  *bool `json:"mevAwareScoring,omitempty"`
}

// SellabilityCheckEnabled reports whether sellability gating applies.
func (o *ScoringOptions) SellabilityCheckEnabled() bool {
	return o == nil || o.SellabilityCheck == nil || *o.SellabilityCheck
}

// MEVAwareScoringEnabled reports whether MEV exposure feeds the risk penalty.
func (o *ScoringOptions) MEVAwareScoringEnabled() bool {
	return o == nil || o.MEVAwareScoring == nil || *o.MEVAwareScoring
}

// QuoteRequest is the validated input to the pipeline. The core treats it as
// immutable; validation of field ranges happens at the API boundary.
type QuoteRequest struct {
	ChainID        int64           `json:"chainId"`
	SellToken      string          `json:"sellToken"`
	BuyToken       string          `json:"buyToken"`
	SellAmount     string          `json:"sellAmount"`
	SlippageBps    int             `json:"slippageBps"`
	Mode           Mode            `json:"mode"`
	Providers      []string        `json:"providers,omitempty"`
	ScoringOptions *ScoringOptions `json:"scoringOptions,omitempty"`
}

// ProviderQuoteRaw is a provider's quote as returned by an adapter. Amounts
// are decimal strings in base units; ParseAmount converts them for arithmetic.
type ProviderQuoteRaw struct {
	SellAmount   string   `json:"sellAmount"`
	BuyAmount    string   `json:"buyAmount"`
	EstimatedGas *int64   `json:"estimatedGas"`
	FeeBps       *int     `json:"feeBps"`
	Route        []string `json:"route,omitempty"`
}

// ProviderQuoteNormalized is the human-comparable form of a raw quote.
// Gas and fee USD conversions stay nil until price data exists.
type ProviderQuoteNormalized struct {
	BuyAmount       string  `json:"buyAmount"`
	EffectivePrice  string  `json:"effectivePrice"`
	EstimatedGasUSD *string `json:"estimatedGasUsd"`
	FeesUSD         *string `json:"feesUsd"`
}

// NormalizationAssumptions records how normalized figures were derived so a
// receipt reader can reproduce them.
type NormalizationAssumptions struct {
	PriceModel          string  `json:"priceModel"`
	EffectivePriceScale int     `json:"effectivePriceScale"`
	GasUSDPerTx         *string `json:"gasUsdPerTx"`
	FeeModel            string  `json:"feeModel"`
}

// DefaultAssumptions returns the ratio-based price model at scale 6.
func DefaultAssumptions() NormalizationAssumptions {
	return NormalizationAssumptions{
		PriceModel:          "ratio_sell_buy",
		EffectivePriceScale: 6,
		GasUSDPerTx:         nil,
		FeeModel:            "feeBps_on_buyAmount",
	}
}

// PreflightResult is the outcome of an off-chain simulated execution check.
type PreflightResult struct {
	OK                  bool     `json:"ok"`
	PRevert             float64  `json:"pRevert"`
	Confidence          float64  `json:"confidence"`
	Reasons             []string `json:"reasons"`
	SimulatedOutput     *string  `json:"simulatedOutput,omitempty"`
	OutputMismatchRatio *float64 `json:"outputMismatchRatio,omitempty"`
}

// Sellability is the resellability verdict with calibrated confidence.
type Sellability struct {
	Status     SellabilityStatus `json:"status"`
	Confidence float64           `json:"confidence"`
	Reasons    []string          `json:"reasons"`
}

// Signal is one leveled risk signal with diagnostic reasons. Reasons record
// which branch fired; downstream logic never parses them except for the
// documented feature-extraction prefixes.
type Signal struct {
	Level   RiskLevel `json:"level"`
	Reasons []string  `json:"reasons"`
}

// ProtocolRisk is the six-domain protocol risk bundle.
type ProtocolRisk struct {
	Security   Signal `json:"security"`
	Compliance Signal `json:"compliance"`
	Financial  Signal `json:"financial"`
	Technology Signal `json:"technology"`
	Operations Signal `json:"operations"`
	Governance Signal `json:"governance"`
}

// MLSignal tags signal provenance after enrichment.
type MLSignal struct {
	Enabled      bool     `json:"enabled"`
	ModelVersion string   `json:"modelVersion,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Source       string   `json:"source,omitempty"`
}

// RiskSignals is the full assessed risk bundle for one quote. Liquidity,
// slippage and protocol risk are optional; the preflight result is embedded
// so scoring can read it without a side channel.
type RiskSignals struct {
	Sellability  Sellability      `json:"sellability"`
	RevertRisk   Signal           `json:"revertRisk"`
	MEVExposure  Signal           `json:"mevExposure"`
	Churn        Signal           `json:"churn"`
	Liquidity    *Signal          `json:"liquidity,omitempty"`
	Slippage     *Signal          `json:"slippage,omitempty"`
	ProtocolRisk *ProtocolRisk    `json:"protocolRisk,omitempty"`
	Preflight    *PreflightResult `json:"preflight,omitempty"`
	ML           *MLSignal        `json:"ml,omitempty"`
}

// ScoreComponents is the per-factor breakdown behind a BEQ score.
// NetOut is a decimal string in base units.
type ScoreComponents struct {
	NetOut      string  `json:"netOut"`
	Reliability float64 `json:"reliability"`
	SellFactor  float64 `json:"sellFactor"`
	RiskPenalty float64 `json:"riskPenalty"`
}

// ScoreOutput is the scorer's verdict for one quote.
type ScoreOutput struct {
	ProviderID   string          `json:"providerId"`
	BEQScore     float64         `json:"beqScore"`
	Components   ScoreComponents `json:"components"`
	Disqualified bool            `json:"disqualified"`
	Why          []WhyRule       `json:"why"`
}

// QuoteScore is the score summary attached to a RankedQuote.
type QuoteScore struct {
	BEQScore      float64 `json:"beqScore"`
	RawOutputRank int     `json:"rawOutputRank"`
}

// RankedQuote is the unit flowing through the whole pipeline: one provider's
// quote plus its normalized form, risk signals and score. Created once per
// provider per request, never merged across providers.
type RankedQuote struct {
	ProviderID   string                  `json:"providerId"`
	SourceType   SourceType              `json:"sourceType"`
	Capabilities Capabilities            `json:"capabilities"`
	Raw          ProviderQuoteRaw        `json:"raw"`
	Normalized   ProviderQuoteNormalized `json:"normalized"`
	Signals      RiskSignals             `json:"signals"`
	Score        QuoteScore              `json:"score"`
	DeepLink     *string                 `json:"deepLink"`
}

// ProviderMeta is the registry entry for one provider integration.
type ProviderMeta struct {
	ProviderID            string       `json:"providerId" yaml:"provider_id"`
	SourceType            SourceType   `json:"sourceType" yaml:"source_type"`
	Capabilities          Capabilities `json:"capabilities" yaml:"capabilities"`
	IntegrationConfidence float64      `json:"integrationConfidence" yaml:"integration_confidence"`
	Enabled               bool         `json:"enabled" yaml:"enabled"`
}

// DecisionReceipt is the auditable record of one ranking decision. Identity
// and timestamps are assigned by the caller-side receipt layer.
type DecisionReceipt struct {
	ID                             string                   `json:"id"`
	CreatedAt                      string                   `json:"createdAt"`
	Request                        QuoteRequest             `json:"request"`
	BestExecutableQuoteProviderID  *string                  `json:"bestExecutableQuoteProviderId"`
	BestRawOutputProviderID        *string                  `json:"bestRawOutputProviderId"`
	BEQRecommendedProviderID       *string                  `json:"beqRecommendedProviderId"`
	RankedQuotes                   []RankedQuote            `json:"rankedQuotes"`
	BestRawQuotes                  []RankedQuote            `json:"bestRawQuotes"`
	Normalization                  NormalizationAssumptions `json:"normalization"`
	WhyWinner                      []WhyRule                `json:"whyWinner"`
	Warnings                       []string                 `json:"warnings"`
}

// ParseAmount parses a non-negative decimal string into a big integer.
// Amounts never pass through floating point.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid base-unit amount %q", s)
	}
	return v, nil
}

// MustAmount is ParseAmount for trusted literals; it panics on malformed
// input and exists for tests and fixtures only.
func MustAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}
