package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contango-scanner/internal/exec"
	"contango-scanner/internal/hedge"
	"contango-scanner/internal/tradelog"
)

var (
	tradeInterval  float64
	tradeEntry     float64
	tradeExit      float64
	tradeLive      bool
	tradeLogPath   string
	tradeTranche   float64
	tradeMaxPerLeg float64
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the hedging loop on top of the scanner",
	RunE:  runTrade,
}

func init() {
	tradeCmd.Flags().Float64Var(&tradeInterval, "interval", 10.0, "seconds between trader ticks (>= 0.1)")
	tradeCmd.Flags().Float64Var(&tradeEntry, "entry-threshold", 1.0, "spread percentage to open a tranche")
	tradeCmd.Flags().Float64Var(&tradeExit, "exit-threshold", 0.2, "spread percentage to unwind a tranche")
	tradeCmd.Flags().BoolVar(&tradeLive, "live", false, "place real orders (requires API credentials)")
	tradeCmd.Flags().StringVar(&tradeLogPath, "trade-log", tradelog.DefaultPath, "trade event JSONL file")
	tradeCmd.Flags().Float64Var(&tradeTranche, "tranche-usd", hedge.DefaultTrancheUSD, "USD size of each tranche")
	tradeCmd.Flags().Float64Var(&tradeMaxPerLeg, "max-per-leg-usd", hedge.DefaultMaxPerLegUSD, "per-position notional cap in USD")
}

func runTrade(cmd *cobra.Command, _ []string) error {
	if tradeInterval < 0.1 {
		return fmt.Errorf("--interval must be >= 0.1, got %g", tradeInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}

	var executor exec.Executor
	if tradeLive {
		live, err := exec.NewLive(a.allVenues())
		if err != nil {
			// Missing credentials are fatal before any order.
			return err
		}
		executor = live
		log.Warn().Msg("live mode: real orders will be placed")
	} else {
		executor = exec.NewDryRun()
		log.Info().Msg("dry-run mode: no orders will be placed")
	}

	events, err := tradelog.Open(tradeLogPath)
	if err != nil {
		return err
	}
	defer events.Close()

	a.start(ctx)
	defer a.stop()

	if err := sleepCtx(ctx, warmup); err != nil {
		return nil
	}

	var sink hedge.EventSink
	if a.pub != nil {
		sink = a.pub
	}
	trader := hedge.NewTrader(hedge.Config{
		EntryThresholdPct: tradeEntry,
		ExitThresholdPct:  tradeExit,
		Interval:          time.Duration(tradeInterval * float64(time.Second)),
		TrancheUSD:        tradeTranche,
		MaxPerLegUSD:      tradeMaxPerLeg,
	}, a.engine, executor, events, sink)

	log.Info().
		Float64("entry_pct", tradeEntry).
		Float64("exit_pct", tradeExit).
		Float64("tranche_usd", tradeTranche).
		Bool("live", tradeLive).
		Msg("trader started")
	trader.Run(ctx)

	log.Info().
		Float64("open_notional_usd", trader.Book().TotalNotionalUSD()).
		Msg("trader stopped")
	return nil
}
