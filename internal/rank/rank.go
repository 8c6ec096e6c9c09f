// Package rank orders scored quotes into the two total orderings the
// decision receipt exposes: raw-output-best and BEQ-best.
package rank

import (
	"math/big"
	"sort"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/score"
)

// DefaultIntegrationConfidence applies when a quote's provider has no
// registry entry. Deliberately punitive: an unknown integration has earned
// no trust yet.
const DefaultIntegrationConfidence = 0.1

// Result is one ranking call's output. Nil winner ids mean "no survivors";
// an empty input yields empty orderings, never an error.
type Result struct {
	BEQRecommendedProviderID *string                       `json:"beqRecommendedProviderId"`
	BestExecutableProviderID *string                       `json:"bestExecutableQuoteProviderId"`
	BestRawOutputProviderID  *string                       `json:"bestRawOutputProviderId"`
	RankedQuotes             []domain.RankedQuote          `json:"rankedQuotes"`
	BestRawQuotes            []domain.RankedQuote          `json:"bestRawQuotes"`
	WhyWinner                []domain.WhyRule              `json:"whyWinner"`
	Scores                   map[string]domain.ScoreOutput `json:"scores"`
}

// Input is the full batch for one ranking call.
type Input struct {
	Mode           domain.Mode
	ProviderMeta   map[string]domain.ProviderMeta
	Quotes         []domain.RankedQuote
	Assumptions    domain.NormalizationAssumptions
	ScoringOptions *domain.ScoringOptions
}

// buyAmountOf parses the raw buy amount, degrading malformed input to zero.
// Validation happens at the boundary; ranking stays total regardless.
func buyAmountOf(q domain.RankedQuote) *big.Int {
	v, err := domain.ParseAmount(q.Raw.BuyAmount)
	if err != nil {
		return big.NewInt(0)
	}
	return v
}

// Rank scores every quote and produces both orderings. All quotes appear in
// the raw ordering, disqualified ones included; only BEQ survivors appear in
// the ranked list. The scale factor is derived once from the largest net
// output so scores across the batch stay proportional.
func Rank(in Input) Result {
	amounts := make(map[string]*big.Int, len(in.Quotes))
	maxNet := big.NewInt(0)
	for _, q := range in.Quotes {
		amt := buyAmountOf(q)
		amounts[q.ProviderID] = amt
		if net := score.NetOutput(amt, q.Raw.FeeBps); net.Cmp(maxNet) > 0 {
			maxNet = net
		}
	}
	scaleFactor := score.ScaleFactorFor(maxNet)

	scores := make(map[string]domain.ScoreOutput, len(in.Quotes))
	for _, q := range in.Quotes {
		confidence := DefaultIntegrationConfidence
		if meta, ok := in.ProviderMeta[q.ProviderID]; ok {
			confidence = meta.IntegrationConfidence
		}
		scores[q.ProviderID] = score.Compute(score.Input{
			ProviderID:            q.ProviderID,
			BuyAmount:             amounts[q.ProviderID],
			FeeBps:                q.Raw.FeeBps,
			IntegrationConfidence: confidence,
			Signals:               q.Signals,
			Mode:                  in.Mode,
			ScoringOptions:        in.ScoringOptions,
			ScaleFactor:           &scaleFactor,
		})
	}

	// Raw ordering: buy amount descending, provider id ascending on ties.
	// Unaffected by mode and scoring options.
	bestRaw := make([]domain.RankedQuote, len(in.Quotes))
	copy(bestRaw, in.Quotes)
	sort.SliceStable(bestRaw, func(i, j int) bool {
		cmp := amounts[bestRaw[i].ProviderID].Cmp(amounts[bestRaw[j].ProviderID])
		if cmp != 0 {
			return cmp > 0
		}
		return bestRaw[i].ProviderID < bestRaw[j].ProviderID
	})
	rawRank := make(map[string]int, len(bestRaw))
	for i := range bestRaw {
		rawRank[bestRaw[i].ProviderID] = i
	}
	for i := range bestRaw {
		bestRaw[i].Score = domain.QuoteScore{
			BEQScore:      scores[bestRaw[i].ProviderID].BEQScore,
			RawOutputRank: i,
		}
	}

	// BEQ ordering over survivors: score descending, then buy amount
	// descending, then provider id ascending. The id tie-break is preserved
	// for compatibility with existing receipts.
	var ranked []domain.RankedQuote
	for _, q := range in.Quotes {
		if !scores[q.ProviderID].Disqualified {
			ranked = append(ranked, q)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ProviderID].BEQScore, scores[ranked[j].ProviderID].BEQScore
		if si != sj {
			return si > sj
		}
		cmp := amounts[ranked[i].ProviderID].Cmp(amounts[ranked[j].ProviderID])
		if cmp != 0 {
			return cmp > 0
		}
		return ranked[i].ProviderID < ranked[j].ProviderID
	})
	for i := range ranked {
		ranked[i].Score = domain.QuoteScore{
			BEQScore:      scores[ranked[i].ProviderID].BEQScore,
			RawOutputRank: rawRank[ranked[i].ProviderID],
		}
	}

	result := Result{
		RankedQuotes:  ranked,
		BestRawQuotes: bestRaw,
		WhyWinner:     []domain.WhyRule{domain.WhyRankedByBeq},
		Scores:        scores,
	}

	if len(ranked) > 0 {
		winner := ranked[0].ProviderID
		result.BEQRecommendedProviderID = &winner
		result.WhyWinner = append(result.WhyWinner, scores[winner].Why...)
		for i := range ranked {
			if ranked[i].Capabilities.BuildTx {
				id := ranked[i].ProviderID
				result.BestExecutableProviderID = &id
				break
			}
		}
	}

	if len(bestRaw) > 0 && amounts[bestRaw[0].ProviderID].Sign() > 0 {
		id := bestRaw[0].ProviderID
		result.BestRawOutputProviderID = &id
	}

	return result
}
