package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/swappilot/quoterank/internal/config"
	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/metrics"
	"github.com/swappilot/quoterank/internal/quotecache"
)

// Adapter fetches one provider's quote for a request.
type Adapter interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (domain.ProviderQuoteRaw, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, req domain.QuoteRequest) (domain.ProviderQuoteRaw, error)

func (f AdapterFunc) Quote(ctx context.Context, req domain.QuoteRequest) (domain.ProviderQuoteRaw, error) {
	return f(ctx, req)
}

// httpAdapter speaks the common quote endpoint shape: GET /quote with the
// request in the query string, JSON amounts back.
type httpAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAdapter builds an adapter for a provider's quote endpoint.
func NewHTTPAdapter(baseURL string, timeout time.Duration) Adapter {
	return &httpAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type quoteResponse struct {
	SellAmount   string   `json:"sellAmount"`
	BuyAmount    string   `json:"buyAmount"`
	EstimatedGas *int64   `json:"estimatedGas"`
	FeeBps       *int     `json:"feeBps"`
	Route        []string `json:"route,omitempty"`
}

func (a *httpAdapter) Quote(ctx context.Context, req domain.QuoteRequest) (domain.ProviderQuoteRaw, error) {
	q := url.Values{}
	q.Set("chainId", fmt.Sprintf("%d", req.ChainID))
	q.Set("sellToken", req.SellToken)
	q.Set("buyToken", req.BuyToken)
	q.Set("sellAmount", req.SellAmount)
	q.Set("slippageBps", fmt.Sprintf("%d", req.SlippageBps))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return domain.ProviderQuoteRaw{}, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return domain.ProviderQuoteRaw{}, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ProviderQuoteRaw{}, fmt.Errorf("quote request: status %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.ProviderQuoteRaw{}, fmt.Errorf("decode quote response: %w", err)
	}
	if _, err := domain.ParseAmount(body.BuyAmount); err != nil {
		return domain.ProviderQuoteRaw{}, fmt.Errorf("quote response buyAmount: %w", err)
	}

	return domain.ProviderQuoteRaw{
		SellAmount:   body.SellAmount,
		BuyAmount:    body.BuyAmount,
		EstimatedGas: body.EstimatedGas,
		FeeBps:       body.FeeBps,
		Route:        body.Route,
	}, nil
}

// guardedProvider is one registered integration with its guards.
type guardedProvider struct {
	meta    domain.ProviderMeta
	adapter Adapter
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// ProviderQuote is one provider's fetched quote, ready for assessment.
type ProviderQuote struct {
	ProviderID   string
	SourceType   domain.SourceType
	Capabilities domain.Capabilities
	Raw          domain.ProviderQuoteRaw
	FromCache    bool
}

// Registry holds all configured providers and fetches from them as a
// batch. A provider failure produces a warning, never a batch failure.
type Registry struct {
	providers map[string]*guardedProvider
	cache     quotecache.Cache
	cacheTTL  time.Duration
	health    *HealthTracker
	metrics   *metrics.Registry
	log       zerolog.Logger
}

// NewRegistry wires adapters, limiters and breakers for every enabled
// provider in cfg. Deep-link-only providers get no adapter; they surface
// through provider metadata alone.
func NewRegistry(cfg *config.Config, cache quotecache.Cache, health *HealthTracker, m *metrics.Registry, logger zerolog.Logger) *Registry {
	r := &Registry{
		providers: make(map[string]*guardedProvider),
		cache:     cache,
		cacheTTL:  cfg.Redis.QuoteTTL,
		health:    health,
		metrics:   m,
		log:       logger.With().Str("component", "providers").Logger(),
	}
	meta := cfg.ProviderMeta()
	for id, pc := range cfg.Providers {
		if !pc.Enabled || pc.DeepLinkOnly {
			continue
		}
		r.Register(meta[id], NewHTTPAdapter(pc.BaseURL, pc.Timeout), pc)
	}
	return r
}

// Register adds one provider with its guard settings. Exposed so tests and
// stub deployments can install non-HTTP adapters.
func (r *Registry) Register(meta domain.ProviderMeta, adapter Adapter, pc config.ProviderConfig) {
	threshold := pc.Circuit.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        meta.ProviderID,
		MaxRequests: pc.Circuit.HalfOpenMax,
		Timeout:     pc.Circuit.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warn().Str("provider", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	rps := pc.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := pc.Burst
	if burst <= 0 {
		burst = 10
	}

	r.providers[meta.ProviderID] = &guardedProvider{
		meta:    meta,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// FetchAll fetches quotes from every registered provider concurrently. The
// request's provider filter, when present, restricts the fan-out. Failures
// come back as warnings alongside the quotes that succeeded.
func (r *Registry) FetchAll(ctx context.Context, req domain.QuoteRequest) ([]ProviderQuote, []string) {
	selected := make([]*guardedProvider, 0, len(r.providers))
	for id, p := range r.providers {
		if len(req.Providers) > 0 && !contains(req.Providers, id) {
			continue
		}
		selected = append(selected, p)
	}

	type fetchResult struct {
		quote *ProviderQuote
		warn  string
	}
	results := make(chan fetchResult, len(selected))
	for _, p := range selected {
		go func(p *guardedProvider) {
			quote, err := r.fetchOne(ctx, p, req)
			if err != nil {
				results <- fetchResult{warn: fmt.Sprintf("provider %s: %v", p.meta.ProviderID, err)}
				return
			}
			results <- fetchResult{quote: quote}
		}(p)
	}

	var quotes []ProviderQuote
	var warnings []string
	for range selected {
		res := <-results
		if res.quote != nil {
			quotes = append(quotes, *res.quote)
		} else {
			warnings = append(warnings, res.warn)
		}
	}
	return quotes, warnings
}

func (r *Registry) fetchOne(ctx context.Context, p *guardedProvider, req domain.QuoteRequest) (*ProviderQuote, error) {
	id := p.meta.ProviderID
	key := quotecache.Key(id, req)

	if cached, ok := r.cache.Get(ctx, key); ok {
		r.health.Record(id, StatusCacheHit, 0)
		if r.metrics != nil {
			r.metrics.RecordCacheHit("quote")
		}
		return &ProviderQuote{
			ProviderID:   id,
			SourceType:   p.meta.SourceType,
			Capabilities: cached.Capabilities,
			Raw:          cached.Raw,
			FromCache:    true,
		}, nil
	}
	if r.metrics != nil {
		r.metrics.RecordCacheMiss("quote")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return p.adapter.Quote(ctx, req)
	})
	elapsed := time.Since(start)

	if err != nil {
		r.health.Record(id, StatusFailure, elapsed)
		if r.metrics != nil {
			r.metrics.RecordProviderQuote(id, "failure", elapsed)
		}
		return nil, err
	}

	quote := raw.(domain.ProviderQuoteRaw)
	r.health.Record(id, StatusSuccess, elapsed)
	if r.metrics != nil {
		r.metrics.RecordProviderQuote(id, "success", elapsed)
	}

	r.cache.Set(ctx, key, quotecache.CachedQuote{
		ProviderID:   id,
		CachedAt:     time.Now().UTC(),
		Raw:          quote,
		Capabilities: p.meta.Capabilities,
	}, r.cacheTTL)

	return &ProviderQuote{
		ProviderID:   id,
		SourceType:   p.meta.SourceType,
		Capabilities: p.meta.Capabilities,
		Raw:          quote,
	}, nil
}

// Health exposes the tracker for the status surface.
func (r *Registry) Health() *HealthTracker { return r.health }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
