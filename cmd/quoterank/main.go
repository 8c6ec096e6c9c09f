package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "quoterank"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Swap quote ranking service",
		Version: version,
		Long: `quoterank fetches swap quotes from configured liquidity providers,
assesses execution risk, and ranks them by Best Execution Quality.

Run 'quoterank serve' to start the HTTP API, or 'quoterank rank' for a
one-shot ranking from the command line.`,
	}
	rootCmd.PersistentFlags().String("config", "config/quoterank.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace|debug|info|warn|error)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRankCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setLogLevel(cmd *cobra.Command) {
	level, _ := cmd.Flags().GetString("log-level")
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
