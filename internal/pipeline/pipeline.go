// Package pipeline orchestrates one quote ranking decision end to end:
// fetch, preflight, risk assessment, enrichment, normalization, scoring,
// ranking, receipt.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/metrics"
	"github.com/swappilot/quoterank/internal/ml"
	"github.com/swappilot/quoterank/internal/normalize"
	"github.com/swappilot/quoterank/internal/providers"
	"github.com/swappilot/quoterank/internal/rank"
	"github.com/swappilot/quoterank/internal/receipt"
	"github.com/swappilot/quoterank/internal/risk"
)

// QuoteSource produces the raw quotes for a request. providers.Registry is
// the production implementation.
type QuoteSource interface {
	FetchAll(ctx context.Context, req domain.QuoteRequest) ([]providers.ProviderQuote, []string)
}

// Preflighter simulates execution for one quote. The simulator lives
// outside this module; a conservative default applies when none is wired.
type Preflighter interface {
	Preflight(ctx context.Context, req domain.QuoteRequest, quote providers.ProviderQuote) domain.PreflightResult
}

// PreflightFunc adapts a function to the Preflighter interface.
type PreflightFunc func(ctx context.Context, req domain.QuoteRequest, quote providers.ProviderQuote) domain.PreflightResult

func (f PreflightFunc) Preflight(ctx context.Context, req domain.QuoteRequest, quote providers.ProviderQuote) domain.PreflightResult {
	return f(ctx, req, quote)
}

// NoPreflight reports an optimistic but low-confidence simulation for
// deployments without a simulator.
func NoPreflight() Preflighter {
	return PreflightFunc(func(context.Context, domain.QuoteRequest, providers.ProviderQuote) domain.PreflightResult {
		return domain.PreflightResult{
			OK:         true,
			PRevert:    0.2,
			Confidence: 0,
			Reasons:    []string{"preflight:simulator_unavailable"},
		}
	})
}

// Pipeline wires the collaborators for ranking decisions.
type Pipeline struct {
	source       QuoteSource
	preflighter  Preflighter
	assessor     *risk.Assessor
	enricher     *ml.Engine
	providerMeta map[string]domain.ProviderMeta
	receipts     receipt.Store
	metrics      *metrics.Registry
	log          zerolog.Logger
	now          func() time.Time
}

// Options collects the pipeline's collaborators.
type Options struct {
	Source       QuoteSource
	Preflighter  Preflighter
	Assessor     *risk.Assessor
	Enricher     *ml.Engine
	ProviderMeta map[string]domain.ProviderMeta
	Receipts     receipt.Store
	Metrics      *metrics.Registry
	Logger       zerolog.Logger
}

// New builds a pipeline. Source, Assessor, Enricher and Receipts are
// required; Preflighter defaults to NoPreflight.
func New(opts Options) *Pipeline {
	pf := opts.Preflighter
	if pf == nil {
		pf = NoPreflight()
	}
	return &Pipeline{
		source:       opts.Source,
		preflighter:  pf,
		assessor:     opts.Assessor,
		enricher:     opts.Enricher,
		providerMeta: opts.ProviderMeta,
		receipts:     opts.Receipts,
		metrics:      opts.Metrics,
		log:          opts.Logger.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
	}
}

// Decision is the full outcome of one ranking request.
type Decision struct {
	ReceiptID                     string                        `json:"receiptId"`
	BEQRecommendedProviderID      *string                       `json:"beqRecommendedProviderId"`
	BestExecutableQuoteProviderID *string                       `json:"bestExecutableQuoteProviderId"`
	BestRawOutputProviderID       *string                       `json:"bestRawOutputProviderId"`
	RankedQuotes                  []domain.RankedQuote          `json:"rankedQuotes"`
	BestRawQuotes                 []domain.RankedQuote          `json:"bestRawQuotes"`
	WhyWinner                     []domain.WhyRule              `json:"whyWinner"`
	Scores                        map[string]domain.ScoreOutput `json:"scores"`
	Warnings                      []string                      `json:"warnings"`
	Receipt                       domain.DecisionReceipt        `json:"receipt"`
}

// Run executes the full decision for one request. Individual provider or
// persistence failures become warnings; only an invalid request or a batch
// with no usable quotes and no metadata is an error-free empty decision.
func (p *Pipeline) Run(ctx context.Context, req domain.QuoteRequest) (*Decision, error) {
	mode, err := domain.ParseMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	req.Mode = mode

	if p.metrics != nil {
		p.metrics.RankRequests.WithLabelValues(string(mode)).Inc()
		p.metrics.ActiveRankings.Inc()
		defer p.metrics.ActiveRankings.Dec()
	}

	fetchTimer := p.stepTimer("fetch")
	quotes, warnings := p.source.FetchAll(ctx, req)
	fetchTimer.stop("success")

	assessTimer := p.stepTimer("assess")
	assessed := p.assessBatch(ctx, req, quotes, &warnings)
	assessTimer.stop("success")

	rankTimer := p.stepTimer("rank")
	result := rank.Rank(rank.Input{
		Mode:           mode,
		ProviderMeta:   p.providerMeta,
		Quotes:         assessed,
		Assumptions:    domain.DefaultAssumptions(),
		ScoringOptions: req.ScoringOptions,
	})
	rankTimer.stop("success")

	if p.metrics != nil && result.BEQRecommendedProviderID != nil {
		p.metrics.BEQWinners.WithLabelValues(*result.BEQRecommendedProviderID).Inc()
	}

	sort.Strings(warnings)
	rcpt := receipt.Build(req, result, domain.DefaultAssumptions(), warnings, p.now())
	if err := p.receipts.Put(ctx, rcpt); err != nil {
		p.log.Error().Err(err).Str("receipt_id", rcpt.ID).Msg("receipt persistence failed")
		warnings = append(warnings, fmt.Sprintf("receipt not persisted: %v", err))
		rcpt.Warnings = warnings
		if p.metrics != nil {
			p.metrics.ReceiptsPersisted.WithLabelValues("failure").Inc()
		}
	} else if p.metrics != nil {
		p.metrics.ReceiptsPersisted.WithLabelValues("success").Inc()
	}

	return &Decision{
		ReceiptID:                     rcpt.ID,
		BEQRecommendedProviderID:      result.BEQRecommendedProviderID,
		BestExecutableQuoteProviderID: result.BestExecutableProviderID,
		BestRawOutputProviderID:       result.BestRawOutputProviderID,
		RankedQuotes:                  result.RankedQuotes,
		BestRawQuotes:                 result.BestRawQuotes,
		WhyWinner:                     result.WhyWinner,
		Scores:                        result.Scores,
		Warnings:                      warnings,
		Receipt:                       rcpt,
	}, nil
}

// assessBatch runs preflight, assessment, enrichment and normalization for
// every quote concurrently. Quotes are independent until ranking.
func (p *Pipeline) assessBatch(ctx context.Context, req domain.QuoteRequest, quotes []providers.ProviderQuote, warnings *[]string) []domain.RankedQuote {
	assessed := make([]domain.RankedQuote, len(quotes))
	warningCh := make(chan string, len(quotes))

	var wg sync.WaitGroup
	for i, quote := range quotes {
		wg.Add(1)
		go func(i int, quote providers.ProviderQuote) {
			defer wg.Done()
			rq, warn := p.assessOne(ctx, req, quote)
			assessed[i] = rq
			if warn != "" {
				warningCh <- warn
			}
		}(i, quote)
	}
	wg.Wait()
	close(warningCh)
	for warn := range warningCh {
		*warnings = append(*warnings, warn)
	}
	return assessed
}

func (p *Pipeline) assessOne(ctx context.Context, req domain.QuoteRequest, quote providers.ProviderQuote) (domain.RankedQuote, string) {
	preflight := p.preflighter.Preflight(ctx, req, quote)
	if p.metrics != nil {
		p.metrics.RecordPreflight(preflight.OK)
	}

	signals := p.assessor.Assess(risk.Input{
		Request:      req,
		ProviderID:   quote.ProviderID,
		SourceType:   quote.SourceType,
		Capabilities: quote.Capabilities,
		Preflight:    preflight,
	})

	confidence := rank.DefaultIntegrationConfidence
	if meta, ok := p.providerMeta[quote.ProviderID]; ok {
		confidence = meta.IntegrationConfidence
	}
	signals = p.enricher.Enrich(ctx, ml.FeatureInput{
		Signals:               signals,
		SourceType:            quote.SourceType,
		IntegrationConfidence: confidence,
		EstimatedGas:          quote.Raw.EstimatedGas,
	})
	if p.metrics != nil && signals.ML != nil && signals.ML.Source != "" {
		p.metrics.RecordEnrichment(signals.ML.Source)
	}

	var warn string
	normalized, err := normalize.Quote(quote.Raw, domain.DefaultAssumptions())
	if err != nil {
		warn = fmt.Sprintf("provider %s: normalization failed: %v", quote.ProviderID, err)
	}

	return domain.RankedQuote{
		ProviderID:   quote.ProviderID,
		SourceType:   quote.SourceType,
		Capabilities: quote.Capabilities,
		Raw:          quote.Raw,
		Normalized:   normalized,
		Signals:      signals,
	}, warn
}

type stepTimer struct {
	timer *metrics.StepTimer
}

func (p *Pipeline) stepTimer(step string) stepTimer {
	if p.metrics == nil {
		return stepTimer{}
	}
	return stepTimer{timer: p.metrics.StartStepTimer(step)}
}

func (st stepTimer) stop(result string) {
	if st.timer != nil {
		st.timer.Stop(result)
	}
}
