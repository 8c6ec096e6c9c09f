package ml

import "github.com/swappilot/quoterank/internal/domain"

// Heuristic is the deterministic predictor used when the model is disabled
// and as the fallback for every enabled-path failure. It reproduces the
// assessor's placeholder logic exactly, which is what makes the disabled
// path indistinguishable from the pre-model system.
func Heuristic(f Features) Prediction {
	mev := domain.RiskMedium
	if f.SourceTypeIsDex == 1 {
		mev = domain.RiskHigh
	}

	liquidity := domain.RiskMedium
	switch {
	case f.SellabilityIsFail == 1:
		liquidity = domain.RiskHigh
	case f.SellabilityIsOK == 1 && f.PRevert < 0.2:
		liquidity = domain.RiskLow
	}

	return Prediction{
		MEVExposureLevel: mev,
		ChurnLevel:       domain.RiskMedium,
		LiquidityLevel:   liquidity,
		SlippageLevel:    liquidity,
		Confidence:       1.0,
		Source:           SourceHeuristic,
	}
}
