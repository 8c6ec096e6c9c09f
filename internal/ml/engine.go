package ml

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/swappilot/quoterank/internal/domain"
)

// Config controls the enrichment engine. With Enabled false the engine is a
// pure pass-through plus a disabled marker.
type Config struct {
	Enabled          bool          `yaml:"enabled"`
	ModelVersion     string        `yaml:"model_version"`
	ModelsPath       string        `yaml:"models_path"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	CacheSize        int           `yaml:"cache_size"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// Engine enriches risk signals with model predictions. The backend is
// resolved once at construction; when it cannot be built the engine runs
// heuristic-only for the rest of the process. Predict and Enrich never
// return errors.
type Engine struct {
	cfg     Config
	cache   *Cache
	backend Backend
	log     zerolog.Logger
}

// NewEngine builds an engine for cfg. A missing or malformed model artifact
// is logged and tolerated; it just pins the fallback.
func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:   cfg,
		cache: NewCache(cfg.CacheSize, cfg.CacheTTL),
		log:   logger.With().Str("component", "ml_engine").Logger(),
	}
	if !cfg.Enabled {
		return e
	}
	backend, err := NewLinearBackend(cfg.ModelsPath, cfg.ModelVersion)
	if err != nil {
		e.log.Warn().Err(err).Str("model_version", cfg.ModelVersion).
			Msg("model backend unavailable, using heuristic fallback")
		return e
	}
	e.backend = backend
	return e
}

// WithBackend swaps the inference backend. Test hook.
func (e *Engine) WithBackend(b Backend) *Engine {
	e.backend = b
	return e
}

// Predict returns a prediction for f, consulting the cache first. Every
// failure mode of the enabled path (no backend, inference error, timeout)
// lands on the heuristic; only successful model predictions are cached.
func (e *Engine) Predict(ctx context.Context, f Features) Prediction {
	if !e.cfg.Enabled {
		return Heuristic(f)
	}

	key := f.Key()
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}
	if e.backend == nil {
		return Heuristic(f)
	}

	timeout := e.cfg.InferenceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	inferCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		pred Prediction
		err  error
	}
	// Buffered so an abandoned inference can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		pred, err := e.backend.Predict(inferCtx, f)
		done <- outcome{pred: pred, err: err}
	}()

	select {
	case <-inferCtx.Done():
		e.log.Debug().Str("reason", "timeout").Msg("inference abandoned")
		return Heuristic(f)
	case out := <-done:
		if out.err != nil {
			e.log.Debug().Err(out.err).Msg("inference failed")
			return Heuristic(f)
		}
		e.cache.Set(key, out.pred)
		return out.pred
	}
}

// Enrich applies enrichment to one quote's signals. Disabled: the signals
// come back unchanged except for the `ml.enabled=false` marker. Enabled:
// the four enrichable levels (MEV exposure, churn, liquidity, slippage) are
// overwritten from the prediction, with provenance tags appended to each
// field's existing reasons.
func (e *Engine) Enrich(ctx context.Context, in FeatureInput) domain.RiskSignals {
	signals := in.Signals
	if !e.cfg.Enabled {
		signals.ML = &domain.MLSignal{Enabled: false}
		return signals
	}

	pred := e.Predict(ctx, BuildFeatures(in))
	return applyPrediction(signals, pred)
}

func applyPrediction(signals domain.RiskSignals, pred Prediction) domain.RiskSignals {
	tags := pred.provenanceReasons()
	tagged := func(existing []string) []string {
		out := make([]string, 0, len(existing)+len(tags))
		out = append(out, existing...)
		return append(out, tags...)
	}

	signals.MEVExposure = domain.Signal{
		Level:   pred.MEVExposureLevel,
		Reasons: tagged(signals.MEVExposure.Reasons),
	}
	signals.Churn = domain.Signal{
		Level:   pred.ChurnLevel,
		Reasons: tagged(signals.Churn.Reasons),
	}

	var liquidityReasons, slippageReasons []string
	if signals.Liquidity != nil {
		liquidityReasons = signals.Liquidity.Reasons
	}
	if signals.Slippage != nil {
		slippageReasons = signals.Slippage.Reasons
	}
	signals.Liquidity = &domain.Signal{
		Level:   pred.LiquidityLevel,
		Reasons: tagged(liquidityReasons),
	}
	signals.Slippage = &domain.Signal{
		Level:   pred.SlippageLevel,
		Reasons: tagged(slippageReasons),
	}

	confidence := pred.Confidence
	signals.ML = &domain.MLSignal{
		Enabled:      true,
		ModelVersion: pred.ModelVersion,
		Confidence:   &confidence,
		Source:       pred.Source,
	}
	return signals
}
