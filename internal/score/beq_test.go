package score

import (
	"reflect"
	"testing"

	"github.com/swappilot/quoterank/internal/domain"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func okSignals() domain.RiskSignals {
	return domain.RiskSignals{
		Sellability: domain.Sellability{Status: domain.SellabilityOK, Confidence: 0.8},
		RevertRisk:  domain.Signal{Level: domain.RiskLow},
		MEVExposure: domain.Signal{Level: domain.RiskLow},
		Churn:       domain.Signal{Level: domain.RiskLow},
		Preflight:   &domain.PreflightResult{OK: true, PRevert: 0, Confidence: 1},
	}
}

func baseInput(buyAmount string) Input {
	return Input{
		ProviderID:            "1inch",
		BuyAmount:             domain.MustAmount(buyAmount),
		IntegrationConfidence: 1,
		Signals:               okSignals(),
		Mode:                  domain.ModeNormal,
	}
}

func TestComputeCleanQuote(t *testing.T) {
	out := Compute(baseInput("2000"))

	if out.Disqualified {
		t.Fatal("clean quote must not be disqualified")
	}
	if out.BEQScore != 2000 {
		t.Errorf("beqScore = %v, want 2000", out.BEQScore)
	}
	wantWhy := []domain.WhyRule{
		domain.WhyBeqFormula,
		domain.WhyPreflightOK,
		domain.WhySellabilityOK,
		domain.WhyRiskLow,
		domain.WhyIntegrationConfidence,
	}
	if !reflect.DeepEqual(out.Why, wantWhy) {
		t.Errorf("why = %v, want %v", out.Why, wantWhy)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	in := baseInput("123456789")
	in.FeeBps = intPtr(25)
	first := Compute(in)
	for i := 0; i < 10; i++ {
		if got := Compute(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestFeeAppliedToNetOutput(t *testing.T) {
	in := baseInput("10000")
	in.FeeBps = intPtr(30)
	out := Compute(in)

	if out.Components.NetOut != "9970" {
		t.Errorf("netOut = %s, want 9970", out.Components.NetOut)
	}

	// Non-positive fee leaves the amount untouched.
	in.FeeBps = intPtr(0)
	if got := Compute(in); got.Components.NetOut != "10000" {
		t.Errorf("netOut with zero fee = %s, want 10000", got.Components.NetOut)
	}
	in.FeeBps = nil
	if got := Compute(in); got.Components.NetOut != "10000" {
		t.Errorf("netOut with nil fee = %s, want 10000", got.Components.NetOut)
	}
}

func TestSafeModeDisqualifiesSellabilityFail(t *testing.T) {
	in := baseInput("999999")
	in.Mode = domain.ModeSafe
	in.Signals.Sellability.Status = domain.SellabilityFail

	out := Compute(in)

	if !out.Disqualified || out.BEQScore != 0 {
		t.Fatalf("expected disqualified score 0, got %+v", out)
	}
	if !containsWhy(out.Why, domain.WhySafeExcludesSellability) {
		t.Errorf("missing safe-mode tag in %v", out.Why)
	}
}

func TestFailSellabilityPenalizedOutsideSafe(t *testing.T) {
	cases := []struct {
		mode domain.Mode
		want float64
	}{
		{domain.ModeNormal, 0.1},
		{domain.ModeDegen, 0.5},
	}
	for _, tc := range cases {
		in := baseInput("1000")
		in.Mode = tc.mode
		in.Signals.Sellability.Status = domain.SellabilityFail
		out := Compute(in)
		if out.Disqualified {
			t.Errorf("mode %s must not disqualify FAIL sellability", tc.mode)
		}
		if out.Components.SellFactor != tc.want {
			t.Errorf("mode %s sellFactor = %v, want %v", tc.mode, out.Components.SellFactor, tc.want)
		}
		if out.BEQScore < 0 {
			t.Errorf("mode %s beqScore negative", tc.mode)
		}
	}
}

func TestUncertainSellFactorByMode(t *testing.T) {
	cases := []struct {
		mode domain.Mode
		want float64
	}{
		{domain.ModeSafe, 0.6},
		{domain.ModeNormal, 0.75},
		{domain.ModeDegen, 0.9},
	}
	for _, tc := range cases {
		in := baseInput("1000")
		in.Mode = tc.mode
		in.Signals.Sellability.Status = domain.SellabilityUncertain
		if got := Compute(in).Components.SellFactor; got != tc.want {
			t.Errorf("mode %s sellFactor = %v, want %v", tc.mode, got, tc.want)
		}
	}
}

func TestSellabilityCheckDisabled(t *testing.T) {
	in := baseInput("1000")
	in.Signals.Sellability.Status = domain.SellabilityFail
	in.ScoringOptions = &domain.ScoringOptions{SellabilityCheck: boolPtr(false)}

	out := Compute(in)

	if out.Components.SellFactor != 1 {
		t.Errorf("sellFactor = %v, want 1 when check disabled", out.Components.SellFactor)
	}
	if !containsWhy(out.Why, domain.WhySellabilityDisabled) {
		t.Errorf("missing sellability_check_disabled in %v", out.Why)
	}
}

func TestRiskPenaltyWorstOfThree(t *testing.T) {
	cases := []struct {
		name    string
		revert  domain.RiskLevel
		mev     domain.RiskLevel
		churn   domain.RiskLevel
		mode    domain.Mode
		penalty float64
		tag     domain.WhyRule
	}{
		{"all low", domain.RiskLow, domain.RiskLow, domain.RiskLow, domain.ModeNormal, 1, domain.WhyRiskLow},
		{"medium churn", domain.RiskLow, domain.RiskLow, domain.RiskMedium, domain.ModeNormal, 0.8, domain.WhyRiskMedium},
		{"high mev", domain.RiskLow, domain.RiskHigh, domain.RiskLow, domain.ModeNormal, 0.5, domain.WhyRiskHigh},
		{"high in safe mode", domain.RiskHigh, domain.RiskLow, domain.RiskLow, domain.ModeSafe, 0.3, domain.WhyRiskHigh},
		{"high in degen mode", domain.RiskHigh, domain.RiskLow, domain.RiskLow, domain.ModeDegen, 0.5, domain.WhyRiskHigh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := baseInput("1000")
			in.Mode = tc.mode
			in.Signals.RevertRisk.Level = tc.revert
			in.Signals.MEVExposure.Level = tc.mev
			in.Signals.Churn.Level = tc.churn
			out := Compute(in)
			if out.Components.RiskPenalty != tc.penalty {
				t.Errorf("riskPenalty = %v, want %v", out.Components.RiskPenalty, tc.penalty)
			}
			if !containsWhy(out.Why, tc.tag) {
				t.Errorf("missing %s in %v", tc.tag, out.Why)
			}
		})
	}
}

func TestMEVAwareScoringDisabledForcesLow(t *testing.T) {
	in := baseInput("1000")
	in.Signals.MEVExposure.Level = domain.RiskHigh
	in.ScoringOptions = &domain.ScoringOptions{MEVAwareScoring: boolPtr(false)}

	if got := Compute(in).Components.RiskPenalty; got != 1 {
		t.Errorf("riskPenalty = %v, want 1 with MEV-aware scoring off", got)
	}
}

func TestSafeModePreflightFailureDisqualifiesImmediately(t *testing.T) {
	in := baseInput("5000")
	in.Mode = domain.ModeSafe
	in.Signals.Preflight = &domain.PreflightResult{OK: false, PRevert: 0.9, Confidence: 1}

	out := Compute(in)

	if !out.Disqualified || out.BEQScore != 0 {
		t.Fatalf("expected immediate disqualification, got %+v", out)
	}
	wantWhy := []domain.WhyRule{domain.WhyBeqFormula, domain.WhyPreflightFailed, domain.WhySafeExcludesPreflight}
	if !reflect.DeepEqual(out.Why, wantWhy) {
		t.Errorf("why = %v, want %v", out.Why, wantWhy)
	}
}

func TestPreflightFailureNotedOutsideSafe(t *testing.T) {
	in := baseInput("5000")
	in.Signals.Preflight = &domain.PreflightResult{OK: false, PRevert: 0.5, Confidence: 1}

	out := Compute(in)

	if out.Disqualified {
		t.Fatal("NORMAL mode must not disqualify on preflight failure")
	}
	if !containsWhy(out.Why, domain.WhyPreflightFailed) {
		t.Errorf("missing preflight_failed in %v", out.Why)
	}
	// Preflight penalty 1−0.5 halves the score: 5000 × 0.5 = 2500.
	if out.BEQScore != 2500 {
		t.Errorf("beqScore = %v, want 2500", out.BEQScore)
	}
}

func TestMissingPreflightIsNeutral(t *testing.T) {
	in := baseInput("4000")
	in.Signals.Preflight = nil

	out := Compute(in)
	if out.BEQScore != 4000 {
		t.Errorf("beqScore = %v, want 4000 with neutral preflight", out.BEQScore)
	}
	if containsWhy(out.Why, domain.WhyPreflightOK) || containsWhy(out.Why, domain.WhyPreflightFailed) {
		t.Errorf("no preflight tags expected, got %v", out.Why)
	}
}

func TestMonotonicInBuyAmount(t *testing.T) {
	amounts := []string{"1", "999", "1000", "123456", "99999999999999999999999999"}
	prev := -1.0
	for _, amt := range amounts {
		in := baseInput(amt)
		in.Signals.Sellability.Status = domain.SellabilityUncertain
		in.FeeBps = intPtr(30)
		sf := 11 // shared factor large enough for the biggest amount
		in.ScaleFactor = &sf
		got := Compute(in).BEQScore
		if got < prev {
			t.Fatalf("score decreased: %v after %v (amount %s)", got, prev, amt)
		}
		prev = got
	}
}

func TestReliabilityClamped(t *testing.T) {
	in := baseInput("1000")
	in.IntegrationConfidence = 3.5
	if got := Compute(in).Components.Reliability; got != 1 {
		t.Errorf("reliability = %v, want clamped to 1", got)
	}
	in.IntegrationConfidence = -0.2
	if got := Compute(in).Components.Reliability; got != 0 {
		t.Errorf("reliability = %v, want clamped to 0", got)
	}
}

func TestLocalScaleFactorFallback(t *testing.T) {
	// 20 digits: local fallback should reduce to 15 significant digits.
	in := baseInput("12345678901234567890")
	out := Compute(in)
	if out.BEQScore != 123456789012345 {
		t.Errorf("beqScore = %v, want 123456789012345", out.BEQScore)
	}
}

func TestScaleFactorFor(t *testing.T) {
	cases := []struct {
		amount string
		want   int
	}{
		{"0", 0},
		{"999999999999999", 0},
		{"1000000000000000", 1},
		{"12345678901234567890", 5},
	}
	for _, tc := range cases {
		if got := ScaleFactorFor(domain.MustAmount(tc.amount)); got != tc.want {
			t.Errorf("ScaleFactorFor(%s) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func containsWhy(why []domain.WhyRule, tag domain.WhyRule) bool {
	for _, w := range why {
		if w == tag {
			return true
		}
	}
	return false
}
