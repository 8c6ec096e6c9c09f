package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/swappilot/quoterank/internal/config"
	"github.com/swappilot/quoterank/internal/httpapi"
	"github.com/swappilot/quoterank/internal/metrics"
	"github.com/swappilot/quoterank/internal/ml"
	"github.com/swappilot/quoterank/internal/pipeline"
	"github.com/swappilot/quoterank/internal/providers"
	"github.com/swappilot/quoterank/internal/quotecache"
	"github.com/swappilot/quoterank/internal/receipt"
	"github.com/swappilot/quoterank/internal/risk"
	"github.com/swappilot/quoterank/internal/token"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the quote ranking HTTP API",
		Long:  "Start the HTTP server that fetches, assesses, and ranks swap quotes.",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	setLogLevel(cmd)

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		log.Warn().Str("path", configPath).Msg("config file not found, using defaults")
		cfg = config.Default()
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	m := metrics.NewRegistry()
	health := providers.NewHealthTracker(providers.HealthParams{})

	var cache quotecache.Cache = quotecache.NoopCache{}
	if cfg.Redis.Addr != "" {
		redisCache, err := quotecache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log.Logger)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("quote cache unavailable, running without")
		} else {
			cache = redisCache
			log.Info().Str("addr", cfg.Redis.Addr).Msg("quote cache connected")
		}
	}

	var receipts receipt.Store = receipt.NewMemoryStore()
	if cfg.Database.DSN != "" {
		store, err := receipt.Connect(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect receipt store: %w", err)
		}
		receipts = store
		log.Info().Msg("receipt store connected")
	} else {
		log.Warn().Msg("no database configured, receipts are kept in memory only")
	}

	registry := providers.NewRegistry(cfg, cache, health, m, log.Logger)
	enricher := ml.NewEngine(cfg.ML, log.Logger)
	assessor := risk.NewAssessor(token.NewSets(cfg.Tokens.Known, cfg.Tokens.Meme))

	p := pipeline.New(pipeline.Options{
		Source:       registry,
		Assessor:     assessor,
		Enricher:     enricher,
		ProviderMeta: cfg.ProviderMeta(),
		Receipts:     receipts,
		Metrics:      m,
		Logger:       log.Logger,
	})

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, p, receipts, health, m, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("server starting")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
