package venue

import (
	"strings"
	"time"
)

// ID identifies a supported venue.
type ID string

const (
	Upbit       ID = "upbit"
	Bithumb     ID = "bithumb"
	OKX         ID = "okx"
	Gate        ID = "gateio"
	Hyperliquid ID = "hyperliquid"
)

// Kind distinguishes spot venues from perpetual-swap venues.
type Kind string

const (
	Spot Kind = "spot"
	Swap Kind = "swap"
)

// Info holds the static configuration of a venue. Fees are configured
// constants, not discovered.
type Info struct {
	ID       ID
	Kind     Kind
	Label    string // display label, e.g. "Up", "OKX"
	TakerFee float64
	Quote    string // quote currency for spot venues
}

var registry = map[ID]Info{
	Upbit:       {ID: Upbit, Kind: Spot, Label: "Up", TakerFee: 0.0005, Quote: "KRW"},
	Bithumb:     {ID: Bithumb, Kind: Spot, Label: "Bit", TakerFee: 0.0004, Quote: "KRW"},
	OKX:         {ID: OKX, Kind: Swap, Label: "OKX", TakerFee: 0.0005},
	Gate:        {ID: Gate, Kind: Swap, Label: "Gate", TakerFee: 0.0005},
	Hyperliquid: {ID: Hyperliquid, Kind: Swap, Label: "Hyperliquid", TakerFee: 0.00035},
}

// Lookup returns the static info for a venue id.
func Lookup(id ID) (Info, bool) {
	info, ok := registry[id]
	return info, ok
}

// TakerFee returns the taker-fee fraction for a venue, 0 if unknown.
func TakerFee(id ID) float64 {
	return registry[id].TakerFee
}

// NormalizeBase converts a venue-local base asset into the canonical
// cross-venue join key: uppercase with hyphens stripped.
func NormalizeBase(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", ""))
}

// Instrument is a tradable market discovered from a venue catalog.
// Key is the venue-local identifier used on the wire (Upbit "KRW-BTC",
// Gate "BTC_USDT", OKX "BTC-USDT-SWAP", Hyperliquid coin "BTC").
type Instrument struct {
	Key    string
	Base   string // canonical base
	Symbol string // display symbol, e.g. "BTC/KRW", "BTC/USDT:USDT"
}

// Quote is the latest top-of-book state for one instrument. Fields are
// pointers because different feeds update different subsets; a nil field
// means the feed has never reported it.
type Quote struct {
	Bid         *float64
	Ask         *float64
	Last        *float64
	Mark        *float64
	FundingRate *float64
	Timestamp   float64 // wall-clock seconds of the last update
}

// HasPrice reports whether the quote carries at least one of bid/ask.
// Quotes without either are invisible to the evaluator.
func (q Quote) HasPrice() bool {
	return q.Bid != nil || q.Ask != nil
}

// Update is a field-level delta produced by a protocol frame handler.
// Nil fields leave the cached value untouched.
type Update struct {
	Key         string
	Bid         *float64
	Ask         *float64
	Last        *float64
	Mark        *float64
	FundingRate *float64
}

// Float returns a pointer to v. Convenience for building Updates.
func Float(v float64) *float64 {
	return &v
}

// Now returns wall-clock time as fractional seconds since the epoch.
func Now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
