// Package exec places the two legs of a hedge tranche. The trader sees
// only the Executor interface; dry-run and live implementations share it.
package exec

import (
	"context"

	"contango-scanner/internal/venue"
)

// Side of a market order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Order is one market order request for a single leg.
type Order struct {
	Venue  venue.ID `json:"venue"`
	Symbol string   `json:"symbol"`
	Side   Side     `json:"side"`
	Qty    float64  `json:"qty"`
}

// Confirmation is the per-leg execution result embedded in trade events.
type Confirmation struct {
	Venue   venue.ID `json:"venue"`
	Symbol  string   `json:"symbol"`
	Side    Side     `json:"side"`
	Qty     float64  `json:"qty"`
	OrderID string   `json:"order_id"`
	DryRun  bool     `json:"dry_run,omitempty"`
}

// Executor places one market order. Implementations must not retry;
// failures surface to the trader, which records them and moves on.
type Executor interface {
	Place(ctx context.Context, order Order) (Confirmation, error)
}
