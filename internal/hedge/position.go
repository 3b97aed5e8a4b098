// Package hedge keeps the FIFO tranche ledger for open short-futures /
// long-spot pairs and drives the auto-trader loop.
package hedge

import (
	"fmt"
	"math"
	"sort"

	"contango-scanner/internal/venue"
)

const (
	// Epsilon bounds every quantity and notional comparison.
	Epsilon = 1e-9

	DefaultMaxPerLegUSD = 2000.0
	DefaultTrancheUSD   = 50.0
)

// Key identifies one hedged pair.
type Key struct {
	SpotVenue    venue.ID
	FuturesVenue venue.ID
	Base         string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SpotVenue, k.FuturesVenue, k.Base)
}

// Tranche is one fixed-USD slice of exposure opened as a unit.
type Tranche struct {
	USD          float64 `json:"usd"`
	EntryFutures float64 `json:"entry_futures_price"`
	EntrySpot    float64 `json:"entry_spot_price"`
	Timestamp    float64 `json:"timestamp"`
}

// Portion is the realized outcome of consuming (part of) one tranche
// during an exit.
type Portion struct {
	USD          float64 `json:"usd"`
	Qty          float64 `json:"qty"`
	EntryFutures float64 `json:"entry_futures_price"`
	EntrySpot    float64 `json:"entry_spot_price"`
	PnlUSD       float64 `json:"pnl_usd"`
}

// Position is the live ledger for one key. Tranches retire strictly FIFO
// and NotionalUSD always equals the tranche sum.
type Position struct {
	Key         Key
	NotionalUSD float64
	Tranches    []Tranche

	maxPerLeg float64
	now       func() float64
}

// NewPosition creates an empty position capped at maxPerLeg USD.
func NewPosition(key Key, maxPerLeg float64) *Position {
	if maxPerLeg <= 0 {
		maxPerLeg = DefaultMaxPerLegUSD
	}
	return &Position{Key: key, maxPerLeg: maxPerLeg, now: venue.Now}
}

// RecordEntry appends a tranche clamped to the remaining capacity and
// returns the USD actually added, 0 when the leg is full.
func (p *Position) RecordEntry(usd, entryFutures, entrySpot float64) float64 {
	remaining := p.maxPerLeg - p.NotionalUSD
	if remaining <= 0 {
		return 0
	}
	if usd > remaining {
		usd = remaining
	}
	if usd <= 0 {
		return 0
	}
	p.Tranches = append(p.Tranches, Tranche{
		USD:          usd,
		EntryFutures: entryFutures,
		EntrySpot:    entrySpot,
		Timestamp:    p.now(),
	})
	p.NotionalUSD += usd
	return usd
}

// RecordExit unwinds up to usd notional FIFO at the given exit prices.
// Each consumed portion realizes the pair-trade PnL of a unit short
// futures plus long spot, with both legs sized at qty = usd/entry_futures.
func (p *Position) RecordExit(usd, exitFutures, exitSpot float64) (float64, float64, []Portion) {
	if usd > p.NotionalUSD {
		usd = p.NotionalUSD
	}
	if usd <= 0 {
		return 0, 0, nil
	}

	var (
		closed   float64
		pnl      float64
		portions []Portion
	)
	remaining := usd
	for remaining > Epsilon && len(p.Tranches) > 0 {
		tr := &p.Tranches[0]
		portion := tr.USD
		if portion > remaining {
			portion = remaining
		}
		qty := portion / tr.EntryFutures
		portionPnl := qty * ((tr.EntryFutures - exitFutures) + (exitSpot - tr.EntrySpot))

		portions = append(portions, Portion{
			USD:          portion,
			Qty:          qty,
			EntryFutures: tr.EntryFutures,
			EntrySpot:    tr.EntrySpot,
			PnlUSD:       portionPnl,
		})
		pnl += portionPnl
		closed += portion
		remaining -= portion

		tr.USD -= portion
		if tr.USD <= Epsilon {
			p.Tranches = p.Tranches[1:]
		}
	}
	p.NotionalUSD -= closed
	return closed, pnl, portions
}

// Empty reports whether the position can be dropped from the book.
func (p *Position) Empty() bool {
	return p.NotionalUSD <= Epsilon
}

// CheckInvariant verifies that the notional matches the tranche sum.
func (p *Position) CheckInvariant() error {
	var sum float64
	for _, tr := range p.Tranches {
		sum += tr.USD
	}
	if math.Abs(p.NotionalUSD-sum) > Epsilon {
		return fmt.Errorf("position %s: notional %.12f != tranche sum %.12f", p.Key, p.NotionalUSD, sum)
	}
	if p.NotionalUSD < -Epsilon || p.NotionalUSD > p.maxPerLeg+Epsilon {
		return fmt.Errorf("position %s: notional %.12f outside [0, %.2f]", p.Key, p.NotionalUSD, p.maxPerLeg)
	}
	return nil
}

// Book is the single-writer set of live positions, created lazily on
// first entry.
type Book struct {
	maxPerLeg float64
	positions map[Key]*Position
}

// NewBook creates an empty book; every position it creates shares the
// same per-leg cap.
func NewBook(maxPerLeg float64) *Book {
	if maxPerLeg <= 0 {
		maxPerLeg = DefaultMaxPerLegUSD
	}
	return &Book{maxPerLeg: maxPerLeg, positions: make(map[Key]*Position)}
}

// Get returns the position for key, creating it if absent.
func (b *Book) Get(key Key) *Position {
	if p, ok := b.positions[key]; ok {
		return p
	}
	p := NewPosition(key, b.maxPerLeg)
	b.positions[key] = p
	return p
}

// Lookup returns the position for key without creating it.
func (b *Book) Lookup(key Key) (*Position, bool) {
	p, ok := b.positions[key]
	return p, ok
}

// Remove drops the position for key.
func (b *Book) Remove(key Key) {
	delete(b.positions, key)
}

// Positions returns the live positions in a stable order.
func (b *Book) Positions() []*Position {
	out := make([]*Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// TotalNotionalUSD sums the open notional across all positions.
func (b *Book) TotalNotionalUSD() float64 {
	var sum float64
	for _, p := range b.positions {
		sum += p.NotionalUSD
	}
	return sum
}
