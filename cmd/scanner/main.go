package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagFutures   string
	flagNoUpbit   bool
	flagNoBithumb bool
)

var rootCmd = &cobra.Command{
	Use:   "scanner",
	Short: "Cross-venue contango scanner for KRW spot vs USDT perpetuals",
	Long: `Streams top-of-book quotes from Korean spot exchanges and USDT
perpetual exchanges, converts both sides to USD and ranks the basis
opportunities. The trade command runs the hedging loop on top.`,
	SilenceUsage: true,
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Credentials and endpoints may live in a local .env file.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&flagFutures, "futures", "okx,gate,hyper",
		"comma list of futures venues (okx, gate, hyper)")
	rootCmd.PersistentFlags().BoolVar(&flagNoUpbit, "no-upbit", false, "disable the Upbit spot feed")
	rootCmd.PersistentFlags().BoolVar(&flagNoBithumb, "no-bithumb", false, "disable the Bithumb spot feed")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(tradeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
