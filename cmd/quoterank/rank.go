package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/swappilot/quoterank/internal/config"
	"github.com/swappilot/quoterank/internal/domain"
	"github.com/swappilot/quoterank/internal/metrics"
	"github.com/swappilot/quoterank/internal/ml"
	"github.com/swappilot/quoterank/internal/pipeline"
	"github.com/swappilot/quoterank/internal/providers"
	"github.com/swappilot/quoterank/internal/quotecache"
	"github.com/swappilot/quoterank/internal/receipt"
	"github.com/swappilot/quoterank/internal/risk"
	"github.com/swappilot/quoterank/internal/token"
)

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank quotes for one swap from the command line",
		Long: `Fetch quotes from the configured providers, rank them, and print the
decision as JSON. With --input, quotes are read from a JSON fixture file
instead of being fetched, so decisions can be reproduced offline.`,
		RunE: runRank,
	}
	addRequestFlags(cmd.Flags())
	cmd.Flags().String("input", "", "JSON fixture with provider quotes (skips live fetch)")
	return cmd
}

// fixtureSource replays quotes captured in a JSON file.
type fixtureSource struct {
	quotes []providers.ProviderQuote
}

func (s *fixtureSource) FetchAll(context.Context, domain.QuoteRequest) ([]providers.ProviderQuote, []string) {
	return s.quotes, nil
}

func loadFixture(path string) (*fixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var quotes []providers.ProviderQuote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &fixtureSource{quotes: quotes}, nil
}

func addRequestFlags(fs *pflag.FlagSet) {
	fs.Int64("chain-id", 56, "Chain ID")
	fs.String("sell-token", "", "Sell token address or symbol")
	fs.String("buy-token", "", "Buy token address or symbol")
	fs.String("sell-amount", "", "Sell amount in base units")
	fs.Int("slippage-bps", 50, "Slippage tolerance in basis points")
	fs.String("mode", "NORMAL", "Risk mode (SAFE|NORMAL|DEGEN)")
	fs.StringSlice("providers", nil, "Restrict to these provider IDs")
	fs.Duration("timeout", 15*time.Second, "Overall request timeout")
}

func runRank(cmd *cobra.Command, args []string) error {
	setLogLevel(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.Default()
	}

	chainID, _ := cmd.Flags().GetInt64("chain-id")
	sellToken, _ := cmd.Flags().GetString("sell-token")
	buyToken, _ := cmd.Flags().GetString("buy-token")
	sellAmount, _ := cmd.Flags().GetString("sell-amount")
	slippageBps, _ := cmd.Flags().GetInt("slippage-bps")
	mode, _ := cmd.Flags().GetString("mode")
	providerIDs, _ := cmd.Flags().GetStringSlice("providers")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if sellToken == "" || buyToken == "" {
		return fmt.Errorf("both --sell-token and --buy-token are required")
	}
	if _, err := domain.ParseAmount(sellAmount); err != nil {
		return fmt.Errorf("invalid --sell-amount: %w", err)
	}
	parsedMode, err := domain.ParseMode(mode)
	if err != nil {
		return err
	}

	m := metrics.NewRegistry()
	health := providers.NewHealthTracker(providers.HealthParams{})

	var source pipeline.QuoteSource = providers.NewRegistry(cfg, quotecache.NoopCache{}, health, m, log.Logger)
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		source, err = loadFixture(input)
		if err != nil {
			return err
		}
	}

	p := pipeline.New(pipeline.Options{
		Source:       source,
		Assessor:     risk.NewAssessor(token.NewSets(cfg.Tokens.Known, cfg.Tokens.Meme)),
		Enricher:     ml.NewEngine(cfg.ML, log.Logger),
		ProviderMeta: cfg.ProviderMeta(),
		Receipts:     receipt.NewMemoryStore(),
		Metrics:      m,
		Logger:       log.Logger,
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	decision, err := p.Run(ctx, domain.QuoteRequest{
		ChainID:     chainID,
		SellToken:   sellToken,
		BuyToken:    buyToken,
		SellAmount:  sellAmount,
		SlippageBps: slippageBps,
		Mode:        parsedMode,
		Providers:   providerIDs,
	})
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision)
}
