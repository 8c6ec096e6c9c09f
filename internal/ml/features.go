// Package ml enriches assessed risk signals with a learned risk model,
// degrading to a deterministic heuristic whenever the model is disabled,
// missing, slow, or broken. The enrichment path never surfaces an error.
package ml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/swappilot/quoterank/internal/domain"
)

// Features is the fixed-order numeric vector fed to the risk model. The
// field order is frozen: it doubles as the cache key layout and as the
// inference input layout, so reordering fields silently invalidates both.
type Features struct {
	PRevert               float64
	PreflightConfidence   float64
	OutputMismatchRatio   float64
	SellabilityIsOK       float64
	SellabilityIsFail     float64
	SellabilityConfidence float64
	HashditRiskLevel      float64
	LiquidityUSD          float64
	IntegrationConfidence float64
	EstimatedGas          float64
	SourceTypeIsDex       float64
}

// FeatureInput carries everything the builder reads.
type FeatureInput struct {
	Signals               domain.RiskSignals
	SourceType            domain.SourceType
	IntegrationConfidence float64
	EstimatedGas          *int64
}

// liquidityUSDFromReasons pulls the dexscreener liquidity tag out of the
// sellability reasons. The "dexscreener:liquidity_usd:max:<n>" prefix is a
// contract with the assessor's reason strings; absent or unparsable → 0.
func liquidityUSDFromReasons(reasons []string) float64 {
	for _, r := range reasons {
		if !strings.HasPrefix(r, "dexscreener:liquidity_usd:max:") {
			continue
		}
		parts := strings.Split(r, ":")
		v, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			return 0
		}
		return v
	}
	return 0
}

// hashditLevelFromReasons pulls the hashdit score out of the sellability
// reasons ("hashdit:riskLevel:<n>"). Absent or unparsable → -1.
func hashditLevelFromReasons(reasons []string) float64 {
	for _, r := range reasons {
		if !strings.HasPrefix(r, "hashdit:riskLevel:") {
			continue
		}
		parts := strings.Split(r, ":")
		v, err := strconv.ParseFloat(parts[len(parts)-1], 64)
		if err != nil {
			return -1
		}
		return v
	}
	return -1
}

// BuildFeatures maps one quote's signals and metadata onto the feature
// vector. Pure and total: missing preflight defaults to pRevert 0.2,
// confidence 0, mismatch ratio 1.
func BuildFeatures(in FeatureInput) Features {
	f := Features{
		PRevert:               0.2,
		OutputMismatchRatio:   1.0,
		SellabilityConfidence: in.Signals.Sellability.Confidence,
		HashditRiskLevel:      hashditLevelFromReasons(in.Signals.Sellability.Reasons),
		LiquidityUSD:          liquidityUSDFromReasons(in.Signals.Sellability.Reasons),
		IntegrationConfidence: in.IntegrationConfidence,
	}
	if pf := in.Signals.Preflight; pf != nil {
		f.PRevert = pf.PRevert
		f.PreflightConfidence = pf.Confidence
		if pf.OutputMismatchRatio != nil {
			f.OutputMismatchRatio = *pf.OutputMismatchRatio
		}
	}
	if in.Signals.Sellability.Status == domain.SellabilityOK {
		f.SellabilityIsOK = 1
	}
	if in.Signals.Sellability.Status == domain.SellabilityFail {
		f.SellabilityIsFail = 1
	}
	if in.EstimatedGas != nil {
		f.EstimatedGas = float64(*in.EstimatedGas)
	}
	if in.SourceType == domain.SourceDEX {
		f.SourceTypeIsDex = 1
	}
	return f
}

// Vector returns the feature values in their frozen order.
func (f Features) Vector() []float64 {
	return []float64{
		f.PRevert,
		f.PreflightConfidence,
		f.OutputMismatchRatio,
		f.SellabilityIsOK,
		f.SellabilityIsFail,
		f.SellabilityConfidence,
		f.HashditRiskLevel,
		f.LiquidityUSD,
		f.IntegrationConfidence,
		f.EstimatedGas,
		f.SourceTypeIsDex,
	}
}

// Key is the canonical serialization used as the prediction cache key.
// Identical vectors always serialize identically.
func (f Features) Key() string {
	var b strings.Builder
	for i, v := range f.Vector() {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// Prediction is one enrichment verdict: four levels, a calibrated
// confidence, and where it came from.
type Prediction struct {
	MEVExposureLevel domain.RiskLevel
	ChurnLevel       domain.RiskLevel
	LiquidityLevel   domain.RiskLevel
	SlippageLevel    domain.RiskLevel
	Confidence       float64
	Source           string
	ModelVersion     string
}

// Provenance source tags.
const (
	SourceModel     = "ml"
	SourceHeuristic = "heuristic"
)

func (p Prediction) provenanceReasons() []string {
	return []string{
		"source:" + p.Source,
		fmt.Sprintf("confidence:%.2f", p.Confidence),
	}
}
