// Package score computes the BEQ (Best Execution Quality) score for a single
// quote: risk-adjusted net output with mode-specific disqualification rules.
// Every branch leaves a tag in the why trail so a decision receipt can replay
// exactly how the number came to be.
package score

import (
	"math"
	"math/big"

	"github.com/swappilot/quoterank/internal/domain"
)

// Input carries everything the scorer needs for one quote. ScaleFactor is
// shared across all quotes of one ranking call so scores stay proportional;
// a nil ScaleFactor derives one locally from this quote's own output (single
// quote fallback only).
type Input struct {
	ProviderID            string
	BuyAmount             *big.Int
	FeeBps                *int
	IntegrationConfidence float64
	Signals               domain.RiskSignals
	Mode                  domain.Mode
	ScoringOptions        *domain.ScoringOptions
	ScaleFactor           *int
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// NetOutput applies the provider fee in basis points to the buy amount.
// Integer arithmetic throughout; a nil or non-positive fee leaves the
// amount unchanged.
func NetOutput(buyAmount *big.Int, feeBps *int) *big.Int {
	if feeBps == nil || *feeBps <= 0 {
		return new(big.Int).Set(buyAmount)
	}
	numerator := big.NewInt(int64(10_000 - *feeBps))
	out := new(big.Int).Mul(buyAmount, numerator)
	return out.Quo(out, big.NewInt(10_000))
}

// maxScaledDigits bounds how many significant digits feed the final float
// multiplication, keeping the scaled value exactly representable.
const maxScaledDigits = 15

// ScaleFactorFor derives the power-of-ten divisor that reduces an amount to
// at most 15 significant digits. Rankers call this once on the largest net
// output of a batch and share the result across all quotes.
func ScaleFactorFor(amount *big.Int) int {
	if amount.Sign() <= 0 {
		return 0
	}
	digits := len(amount.String())
	if digits <= maxScaledDigits {
		return 0
	}
	return digits - maxScaledDigits
}

// scaleDown divides the integer by 10^factor and converts the quotient to a
// plain float for multiplication with the penalty factors.
func scaleDown(amount *big.Int, factor int) float64 {
	if factor <= 0 {
		f, _ := new(big.Float).SetInt(amount).Float64()
		return f
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(factor)), nil)
	q := new(big.Int).Quo(amount, divisor)
	f, _ := new(big.Float).SetInt(q).Float64()
	return f
}

func sellFactor(mode domain.Mode, signals domain.RiskSignals, opts *domain.ScoringOptions) (factor float64, disqualified bool, why []domain.WhyRule) {
	if !opts.SellabilityCheckEnabled() {
		return 1, false, []domain.WhyRule{domain.WhySellabilityDisabled}
	}

	switch signals.Sellability.Status {
	case domain.SellabilityOK:
		return 1, false, []domain.WhyRule{domain.WhySellabilityOK}
	case domain.SellabilityUncertain:
		switch mode {
		case domain.ModeSafe:
			factor = 0.6
		case domain.ModeNormal:
			factor = 0.75
		default:
			factor = 0.9
		}
		return factor, false, []domain.WhyRule{domain.WhySellabilityUncertain}
	default: // FAIL
		if mode == domain.ModeSafe {
			return 0, true, []domain.WhyRule{domain.WhySellabilityFail, domain.WhySafeExcludesSellability}
		}
		if mode == domain.ModeNormal {
			factor = 0.1
		} else {
			factor = 0.5
		}
		return factor, false, []domain.WhyRule{domain.WhySellabilityFail}
	}
}

func riskPenalty(mode domain.Mode, signals domain.RiskSignals, opts *domain.ScoringOptions) (float64, domain.WhyRule) {
	mevLevel := signals.MEVExposure.Level
	if !opts.MEVAwareScoringEnabled() {
		mevLevel = domain.RiskLow
	}
	worst := domain.WorstLevel(signals.RevertRisk.Level, mevLevel, signals.Churn.Level)

	switch worst {
	case domain.RiskLow:
		return 1, domain.WhyRiskLow
	case domain.RiskMedium:
		return 0.8, domain.WhyRiskMedium
	default:
		// SAFE punishes a HIGH worst level more sharply than the base mapping.
		if mode == domain.ModeSafe {
			return 0.3, domain.WhyRiskHigh
		}
		return 0.5, domain.WhyRiskHigh
	}
}

// Compute scores one quote. Inputs are assumed validated at the boundary;
// the only internal branches are the documented SAFE-mode disqualifications,
// which are policy outcomes, not errors.
func Compute(in Input) domain.ScoreOutput {
	why := []domain.WhyRule{domain.WhyBeqFormula}

	preflight := in.Signals.Preflight
	if preflight != nil && !preflight.OK {
		why = append(why, domain.WhyPreflightFailed)
		if in.Mode == domain.ModeSafe {
			why = append(why, domain.WhySafeExcludesPreflight)
			return domain.ScoreOutput{
				ProviderID:   in.ProviderID,
				BEQScore:     0,
				Components:   domain.ScoreComponents{NetOut: "0"},
				Disqualified: true,
				Why:          why,
			}
		}
	}
	if preflight != nil && preflight.OK {
		why = append(why, domain.WhyPreflightOK)
	}

	factor, disqualified, whySell := sellFactor(in.Mode, in.Signals, in.ScoringOptions)
	why = append(why, whySell...)

	penalty, whyRisk := riskPenalty(in.Mode, in.Signals, in.ScoringOptions)
	why = append(why, whyRisk)

	reliability := clamp01(in.IntegrationConfidence)
	why = append(why, domain.WhyIntegrationConfidence)

	netOut := NetOutput(in.BuyAmount, in.FeeBps)

	preflightPenalty := 1.0
	if preflight != nil {
		preflightPenalty = 1 - clamp01(preflight.PRevert)
	}

	scaleFactor := ScaleFactorFor(netOut)
	if in.ScaleFactor != nil {
		scaleFactor = *in.ScaleFactor
	}

	var beqScore float64
	if !disqualified && netOut.Sign() > 0 {
		scaled := scaleDown(netOut, scaleFactor)
		beqScore = math.Round(scaled * reliability * factor * penalty * preflightPenalty)
		if beqScore < 0 {
			beqScore = 0
		}
	}

	return domain.ScoreOutput{
		ProviderID: in.ProviderID,
		BEQScore:   beqScore,
		Components: domain.ScoreComponents{
			NetOut:      netOut.String(),
			Reliability: reliability,
			SellFactor:  factor,
			RiskPenalty: penalty,
		},
		Disqualified: disqualified,
		Why:          why,
	}
}
