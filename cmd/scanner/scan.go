package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"contango-scanner/internal/contango"
)

var (
	scanInterval float64
	scanMinPct   float64
	scanTop      int
	scanOnce     bool
	scanClear    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Continuously rank contango opportunities",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().Float64Var(&scanInterval, "interval", 2.0, "seconds between evaluations (>= 0.1)")
	scanCmd.Flags().Float64Var(&scanMinPct, "min-pct", 0.2, "minimum spread percentage to report")
	scanCmd.Flags().IntVar(&scanTop, "top", 10, "number of rows to display")
	scanCmd.Flags().BoolVar(&scanOnce, "once", false, "evaluate once and exit")
	scanCmd.Flags().BoolVar(&scanClear, "clear", false, "clear the screen between refreshes")
}

func runScan(cmd *cobra.Command, _ []string) error {
	if scanInterval < 0.1 {
		return fmt.Errorf("--interval must be >= 0.1, got %g", scanInterval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	a.start(ctx)
	defer a.stop()

	if err := sleepCtx(ctx, warmup); err != nil {
		return nil
	}

	// Never spin faster than twice a second regardless of the flag.
	tick := scanInterval
	if tick < 0.5 {
		tick = 0.5
	}
	pause := time.Duration(tick * float64(time.Second))

	params := contango.Params{
		MinSpreadPct:              scanMinPct,
		RequireNonNegativeFunding: true,
	}
	for {
		rows := a.engine.Scan(params)
		render(rows, scanTop, scanClear)
		if a.pub != nil {
			if err := a.pub.PublishOpportunities(ctx, rows); err != nil {
				log.Warn().Err(err).Msg("opportunity publish")
			}
		}
		if scanOnce {
			return nil
		}
		if err := sleepCtx(ctx, pause); err != nil {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
