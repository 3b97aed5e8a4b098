package exec

import (
	"context"

	"github.com/rs/zerolog/log"
)

// DryRun suppresses side effects and returns synthetic confirmations.
type DryRun struct{}

// NewDryRun creates the no-op executor used outside live mode.
func NewDryRun() *DryRun {
	return &DryRun{}
}

func (d *DryRun) Place(_ context.Context, order Order) (Confirmation, error) {
	log.Info().
		Str("venue", string(order.Venue)).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Msg("dry-run order")
	return Confirmation{
		Venue:   order.Venue,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Qty:     order.Qty,
		OrderID: "DRY_RUN",
		DryRun:  true,
	}, nil
}

var _ Executor = (*DryRun)(nil)
