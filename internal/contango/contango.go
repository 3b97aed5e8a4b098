// Package contango joins KRW spot and USDT perpetual quotes on the
// canonical base asset and ranks the cross-venue basis opportunities.
package contango

import (
	"sort"
	"strings"

	"contango-scanner/internal/venue"
)

// Buffer percentages precomputed on every row as funding/slippage margin.
const (
	BufferLow  = 0.2
	BufferHigh = 0.4
)

// Row is one spot-buy / futures-short opportunity produced by a scan.
type Row struct {
	Base            string   `json:"base"`
	SpotVenue       venue.ID `json:"spot_exchange"`
	FuturesVenue    venue.ID `json:"futures_exchange"`
	SpotPriceUSD    float64  `json:"spot_price_usd"`
	FuturesPriceUSD float64  `json:"futures_price_usd"`
	Spread          float64  `json:"spread"`
	Pct             float64  `json:"pct"`
	FeesPct         float64  `json:"fees_pct"`
	NetPct          float64  `json:"net_pct"`
	NetPctBufLow    float64  `json:"net_pct_minus_02"`
	NetPctBufHigh   float64  `json:"net_pct_minus_04"`
	FundingRate     float64  `json:"funding_rate"`
	FuturesSymbol   string   `json:"futures_symbol"`
}

// Params controls filtering during evaluation.
type Params struct {
	MinSpreadPct              float64
	RequireNonNegativeFunding bool
}

// SpotSide is one spot venue's contribution: canonical base to USD price.
type SpotSide struct {
	Venue  venue.ID
	Prices map[string]float64
}

// FuturesSide is one perp venue's instruments plus its quote snapshot.
type FuturesSide struct {
	Venue       venue.ID
	Instruments []venue.Instrument
	Quotes      map[string]venue.Quote
}

// ProjectSpotUSD converts a KRW spot snapshot into canonical-base USD
// prices. Ask is preferred, last is the fallback; non-positive readings
// are omitted.
func ProjectSpotUSD(instruments []venue.Instrument, quotes map[string]venue.Quote, rate float64) map[string]float64 {
	out := make(map[string]float64, len(instruments))
	if rate <= 0 {
		return out
	}
	for _, inst := range instruments {
		if !strings.HasSuffix(inst.Symbol, "/KRW") {
			continue
		}
		q, ok := quotes[inst.Key]
		if !ok {
			continue
		}
		var krw float64
		switch {
		case q.Ask != nil && *q.Ask > 0:
			krw = *q.Ask
		case q.Last != nil && *q.Last > 0:
			krw = *q.Last
		default:
			continue
		}
		out[inst.Base] = krw / rate
	}
	return out
}

// Evaluate runs the cartesian join of spot sides and futures sides and
// returns the surviving rows sorted descending by raw spread percentage.
func Evaluate(spots []SpotSide, futures []FuturesSide, p Params) []Row {
	var rows []Row
	for _, fut := range futures {
		futFee := venue.TakerFee(fut.Venue)
		for _, inst := range fut.Instruments {
			q, ok := fut.Quotes[inst.Key]
			if !ok || q.Bid == nil || *q.Bid <= 0 {
				continue
			}
			if q.FundingRate == nil {
				continue
			}
			funding := *q.FundingRate
			if p.RequireNonNegativeFunding && funding < 0 {
				continue
			}
			fp := *q.Bid

			for _, spot := range spots {
				sp, ok := spot.Prices[inst.Base]
				if !ok || sp <= 0 {
					continue
				}
				spread := fp - sp
				if spread <= 0 {
					continue
				}
				pct := 100 * spread / sp
				if pct < p.MinSpreadPct {
					continue
				}
				feesPct := (2*venue.TakerFee(spot.Venue) + 2*futFee) * 100
				netPct := pct - feesPct
				rows = append(rows, Row{
					Base:            inst.Base,
					SpotVenue:       spot.Venue,
					FuturesVenue:    fut.Venue,
					SpotPriceUSD:    sp,
					FuturesPriceUSD: fp,
					Spread:          spread,
					Pct:             pct,
					FeesPct:         feesPct,
					NetPct:          netPct,
					NetPctBufLow:    netPct - BufferLow,
					NetPctBufHigh:   netPct - BufferHigh,
					FundingRate:     funding,
					FuturesSymbol:   inst.Symbol,
				})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pct > rows[j].Pct })
	return rows
}
